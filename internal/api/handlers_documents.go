// handlers_documents.go - Document inspection and editing handlers
package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
	"github.com/svg-workbench/backend/internal/storage"
	"github.com/svg-workbench/backend/internal/svg"
)

const (
	mimeSVG     = "image/svg+xml"
	mimeMsgpack = "application/x-msgpack"
)

// DocumentHandlerImpl implements the DocumentHandler interface
type DocumentHandlerImpl struct {
	store      storage.Store
	indexer    FileIndexer
	checker    parser.SchemaChecker
	sessionMgr SessionManager
	rules      *parser.RulesFile
}

// NewDocumentHandler creates a new document handler instance
func NewDocumentHandler(store storage.Store, indexer FileIndexer, checker parser.SchemaChecker, sessionMgr SessionManager, rules *parser.RulesFile) DocumentHandler {
	return &DocumentHandlerImpl{
		store:      store,
		indexer:    indexer,
		checker:    checker,
		sessionMgr: sessionMgr,
		rules:      rules,
	}
}

func (h *DocumentHandlerImpl) editRules() models.EditRules {
	if h.rules == nil {
		return models.EditRules{}
	}
	return h.rules.Rules()
}

// HandleCreateDocument builds a new document from {"title","descr"}, stores
// it under ?name= and opens it
func (h *DocumentHandlerImpl) HandleCreateDocument(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	doc, err := svg.DocumentFromJSON(string(body))
	if err != nil {
		return NewDocumentError("document", "new", err)
	}
	if err := parser.CheckDocument(doc, h.checker); err != nil {
		return NewDocumentError("document", "new", err)
	}

	name := storage.CleanName(c.QueryParam("name"))
	data, err := svg.MarshalXML(doc)
	if err != nil {
		return NewDocumentError("document", "new", err)
	}
	if parser.IsCompressedName(name) {
		var buf bytes.Buffer
		if err := parser.NewCompressedFormat(-1).Encode(&buf, data); err != nil {
			return NewInternalError("failed to compress document", err)
		}
		data = buf.Bytes()
	}

	info, err := h.store.SaveBytes(name, data)
	if err != nil {
		return NewInternalError("failed to save document", err)
	}
	if _, err := h.indexer.IndexFile(c.Request().Context(), info); err != nil {
		return NewInternalError("failed to index document", err)
	}

	sess, err := h.sessionMgr.Open(info.ID)
	if err != nil {
		return NewDocumentError("document", info.ID, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// HandleOpenDocument loads a stored file for editing
func (h *DocumentHandlerImpl) HandleOpenDocument(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.sessionMgr.Open(id)
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleListSessions lists open documents
func (h *DocumentHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessionMgr.ListSessions())
}

// HandleGetSummary returns the document summary JSON
func (h *DocumentHandlerImpl) HandleGetSummary(c echo.Context) error {
	id := c.Param("id")
	var out string
	err := h.sessionMgr.View(id, func(doc *svg.Document) error {
		out = svg.DocumentToJSON(doc)
		return nil
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSONBlob(http.StatusOK, []byte(out))
}

// HandleListElements returns the elements of one kind. ?deep=true walks the
// whole tree instead of the top level.
func (h *DocumentHandlerImpl) HandleListElements(c echo.Context) error {
	id := c.Param("id")
	kind, err := parseElementKind(c.Param("kind"))
	if err != nil {
		return err
	}
	deep := c.QueryParam("deep") == "true"

	var out string
	err = h.sessionMgr.View(id, func(doc *svg.Document) error {
		switch kind {
		case svg.KindRectangle:
			if deep {
				out = svg.RectanglePtrListToJSON(svg.CollectRectangles(doc))
			} else {
				out = svg.RectangleListToJSON(doc.Rectangles)
			}
		case svg.KindCircle:
			if deep {
				out = svg.CirclePtrListToJSON(svg.CollectCircles(doc))
			} else {
				out = svg.CircleListToJSON(doc.Circles)
			}
		case svg.KindPath:
			if deep {
				out = svg.PathPtrListToJSON(svg.CollectPaths(doc))
			} else {
				out = svg.PathListToJSON(doc.Paths)
			}
		case svg.KindGroup:
			if deep {
				out = svg.GroupPtrListToJSON(svg.CollectGroups(doc))
			} else {
				out = svg.GroupListToJSON(doc.Groups)
			}
		}
		return nil
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSONBlob(http.StatusOK, []byte(out))
}

// HandleGetAttributes returns the attribute list of one element. Use the
// kind "svg" for the document itself.
func (h *DocumentHandlerImpl) HandleGetAttributes(c echo.Context) error {
	id := c.Param("id")
	kind, index, err := parseElementRef(c)
	if err != nil {
		return err
	}

	var out string
	err = h.sessionMgr.View(id, func(doc *svg.Document) error {
		attrs, err := doc.AttributesOf(kind, index)
		if err != nil {
			return err
		}
		out = svg.AttributeListToJSON(attrs)
		return nil
	})
	if err != nil {
		return NewDocumentError(kind.String(), fmt.Sprintf("%s[%d]", id, index), err)
	}
	return c.JSONBlob(http.StatusOK, []byte(out))
}

// HandleSetAttribute sets one attribute on an element, subject to the edit
// rules
func (h *DocumentHandlerImpl) HandleSetAttribute(c echo.Context) error {
	id := c.Param("id")
	kind, index, err := parseElementRef(c)
	if err != nil {
		return err
	}

	var req setAttributeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	rules := h.editRules()
	if rules.IsProtected(req.Name) {
		return NewForbiddenError(fmt.Sprintf("attribute %q is protected", req.Name))
	}
	if units := requestedUnits(kind, req.Name, req.Value); !rules.AllowsUnits(units) {
		return NewUnprocessableError("UNIT_NOT_ALLOWED", fmt.Sprintf("units %q are not allowed", units), nil)
	}

	attr := svg.Attribute{Name: req.Name, Value: req.Value}
	sess, err := h.sessionMgr.Update(id, func(doc *svg.Document) error {
		if rules.MaxAttributes > 0 {
			attrs, err := doc.AttributesOf(kind, index)
			if err != nil {
				return err
			}
			if _, exists := svg.Lookup(attrs, attr.Name); !exists && !isDedicatedField(kind, attr.Name) && len(attrs) >= rules.MaxAttributes {
				return NewUnprocessableError("TOO_MANY_ATTRIBUTES",
					fmt.Sprintf("element already has %d attributes", len(attrs)), nil)
			}
		}
		return svg.SetAttribute(doc, kind, index, attr)
	})
	if err != nil {
		return NewDocumentError(kind.String(), fmt.Sprintf("%s[%d]", id, index), err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleAddComponent appends a shape built from the JSON body
func (h *DocumentHandlerImpl) HandleAddComponent(c echo.Context) error {
	id := c.Param("id")
	kind, err := parseElementKind(c.Param("kind"))
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	component, err := svg.ComponentFromJSON(kind, string(body))
	if err != nil {
		return NewDocumentError(kind.String(), id, err)
	}

	rules := h.editRules()
	if units := componentUnits(component); !rules.AllowsUnits(units) {
		return NewUnprocessableError("UNIT_NOT_ALLOWED", fmt.Sprintf("units %q are not allowed", units), nil)
	}

	var index int
	sess, err := h.sessionMgr.Update(id, func(doc *svg.Document) error {
		if err := svg.AddComponent(doc, component); err != nil {
			return err
		}
		index, _ = doc.Len(kind)
		index--
		return nil
	})
	if err != nil {
		return NewDocumentError(kind.String(), id, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"session": sess,
		"index":   index,
	})
}

// HandleUpdateMetadata replaces the title and/or description
func (h *DocumentHandlerImpl) HandleUpdateMetadata(c echo.Context) error {
	id := c.Param("id")
	var req metadataRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	sess, err := h.sessionMgr.Update(id, func(doc *svg.Document) error {
		if req.Title != nil {
			if err := svg.SetTitle(doc, *req.Title); err != nil {
				return err
			}
		}
		if req.Description != nil {
			return svg.SetDescription(doc, *req.Description)
		}
		return nil
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleScale multiplies the size of every top-level shape of one kind
func (h *DocumentHandlerImpl) HandleScale(c echo.Context) error {
	id := c.Param("id")
	var req scaleRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	kind, err := parseElementKind(req.Kind)
	if err != nil {
		return err
	}
	if rules := h.editRules(); !rules.AllowsScale(req.Factor) {
		return NewUnprocessableError("SCALE_NOT_ALLOWED",
			fmt.Sprintf("scale factor %g exceeds the limit of %g", req.Factor, rules.MaxScaleFactor), nil)
	}

	sess, err := h.sessionMgr.Update(id, func(doc *svg.Document) error {
		return svg.ScaleShapes(doc, kind, req.Factor)
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleValidate runs the schema and structural checks on the open document
func (h *DocumentHandlerImpl) HandleValidate(c echo.Context) error {
	id := c.Param("id")
	var problem error
	err := h.sessionMgr.View(id, func(doc *svg.Document) error {
		problem = parser.CheckDocument(doc, h.checker)
		return nil
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}

	resp := validationResponse{Valid: problem == nil}
	if problem != nil {
		resp.Problem = problem.Error()
		resp.Code = NewDocumentError("document", id, problem).Code
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleExportXML returns the open document as SVG markup
func (h *DocumentHandlerImpl) HandleExportXML(c echo.Context) error {
	id := c.Param("id")
	var data []byte
	err := h.sessionMgr.View(id, func(doc *svg.Document) error {
		var err error
		data, err = svg.MarshalXML(doc)
		return err
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.Blob(http.StatusOK, mimeSVG, data)
}

// HandleSnapshot returns the open document as a msgpack snapshot
func (h *DocumentHandlerImpl) HandleSnapshot(c echo.Context) error {
	id := c.Param("id")
	var data []byte
	err := h.sessionMgr.View(id, func(doc *svg.Document) error {
		var err error
		data, err = svg.EncodeSnapshot(doc)
		return err
	})
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.Blob(http.StatusOK, mimeMsgpack, data)
}

// HandleSave writes the open document back to storage
func (h *DocumentHandlerImpl) HandleSave(c echo.Context) error {
	id := c.Param("id")
	sess, err := h.sessionMgr.Save(c.Request().Context(), id)
	if err != nil {
		return NewDocumentError("document", id, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleClose discards an open document
func (h *DocumentHandlerImpl) HandleClose(c echo.Context) error {
	id := c.Param("id")
	if !h.sessionMgr.Close(id) {
		return NewNotFoundError("document session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Request/Response types

type setAttributeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (r *setAttributeRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name")
	}
	return nil
}

type metadataRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (r *metadataRequest) validate() error {
	if r.Title == nil && r.Description == nil {
		return NewBadRequestError("title or description is required", nil)
	}
	if r.Title != nil && !svg.ValidText(*r.Title) {
		return NewValidationError("title")
	}
	if r.Description != nil && !svg.ValidText(*r.Description) {
		return NewValidationError("description")
	}
	return nil
}

type scaleRequest struct {
	Kind   string  `json:"kind"`
	Factor float64 `json:"factor"`
}

type validationResponse struct {
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Problem string `json:"problem,omitempty"`
}

// Helper functions

func parseElementKind(s string) (svg.Kind, error) {
	kind, err := svg.ParseKind(s)
	if err != nil || kind == svg.KindDocument {
		return 0, NewBadRequestError(fmt.Sprintf("unknown element kind: %s", s), err)
	}
	return kind, nil
}

func parseElementRef(c echo.Context) (svg.Kind, int, error) {
	kind, err := svg.ParseKind(c.Param("kind"))
	if err != nil {
		return 0, 0, NewBadRequestError(fmt.Sprintf("unknown element kind: %s", c.Param("kind")), err)
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, 0, NewValidationError("index")
	}
	return kind, index, nil
}

func isDedicatedField(kind svg.Kind, name string) bool {
	switch kind {
	case svg.KindRectangle:
		return name == "x" || name == "y" || name == "width" || name == "height" || name == "units"
	case svg.KindCircle:
		return name == "cx" || name == "cy" || name == "r" || name == "units"
	case svg.KindPath:
		return name == "d"
	case svg.KindDocument:
		return name == "xmlns"
	}
	return false
}

// requestedUnits returns the unit an attribute edit would give a shape, e.g.
// "mm" for width="5mm".
func requestedUnits(kind svg.Kind, name, value string) string {
	if name == "units" {
		return value
	}
	if !isDedicatedField(kind, name) || name == "d" || name == "xmlns" {
		return ""
	}
	return strings.TrimSpace(value[strings.LastIndexAny(value, "0123456789.")+1:])
}

func componentUnits(c svg.Component) string {
	switch v := c.(type) {
	case *svg.Rectangle:
		return v.Units
	case *svg.Circle:
		return v.Units
	}
	return ""
}
