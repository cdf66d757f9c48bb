package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/api"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/files"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/utils"
)

// Dispatcher resolves and invokes interface methods
type Dispatcher interface {
	Dispatch(ctx context.Context, cc *types.CallContext, name, version, method string, args interface{}) (interface{}, error)
	Introspect(names []string) (map[string]interface{}, error)
}

// Files serves cached files by URL path
type Files interface {
	Lookup(urlPath string) (*files.File, bool)
}

// Status reports the application state for health checks
type Status func() map[string]interface{}

// Handlers contains all HTTP handlers
type Handlers struct {
	dispatcher Dispatcher
	static     Files
	status     Status
	validator  *utils.JSONSizeValidator
	log        *logging.Logger
}

// NewHandlers creates a new handler set. static and status may be nil.
func NewHandlers(dispatcher Dispatcher, static Files, status Status, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		dispatcher: dispatcher,
		static:     static,
		status:     status,
		validator:  utils.DefaultJSONValidator(),
		log:        log,
	}
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.status != nil {
		for k, v := range h.status() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}

// Call invokes interface.method with the JSON request body as arguments.
// The interface token is "name" or "name.version".
func (h *Handlers) Call(c *gin.Context) {
	name, version := api.ParseInterface(c.Param("interface"))
	method := c.Param("method")

	if err := utils.ValidateIdentifier(name, "interface"); err != nil {
		writeError(c, types.NewError(types.CodeParams, "%s", err.Error()))
		return
	}
	if err := utils.ValidateIdentifier(method, "method"); err != nil {
		writeError(c, types.NewError(types.CodeParams, "%s", err.Error()))
		return
	}

	args, err := h.readArgs(c.Request.Body)
	if err != nil {
		writeError(c, err)
		return
	}

	cc := types.NewCallContext(&types.Client{
		CallID: id.NewCallID().String(),
		IP:     c.ClientIP(),
	})
	result, err := h.dispatcher.Dispatch(c.Request.Context(), cc, name, version, method, args)
	if err != nil {
		e := types.AsError(err)
		if e.Code == types.CodeInternal {
			h.log.Error("Procedure failed",
				zap.String("interface", name),
				zap.String("method", method),
				zap.String("call_id", cc.Client.CallID),
				zap.Error(err),
			)
		}
		writeError(c, e)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Introspect returns method signatures for ?interfaces=a,b.2
func (h *Handlers) Introspect(c *gin.Context) {
	var names []string
	for _, n := range strings.Split(c.Query("interfaces"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		writeError(c, types.NewError(types.CodeParams, "interfaces query parameter is required"))
		return
	}

	result, err := h.dispatcher.Introspect(names)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Static serves files from the static place; it is installed as the
// NoRoute handler.
func (h *Handlers) Static(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
		return
	}
	if h.static == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	f, ok := h.static.Lookup(c.Request.URL.Path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	header := c.Writer.Header()
	header.Set("ETag", f.ETag)
	header.Set("Last-Modified", f.ModTime.UTC().Format(http.TimeFormat))
	header.Set("Vary", "Accept-Encoding")
	if match := c.GetHeader("If-None-Match"); match != "" && match == f.ETag {
		c.Status(http.StatusNotModified)
		return
	}

	data := f.Data
	if f.Gzip != nil && strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		header.Set("Content-Encoding", "gzip")
		data = f.Gzip
	}
	c.Data(http.StatusOK, f.MIME, data)
}

func (h *Handlers) readArgs(body io.Reader) (interface{}, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(body, utils.MaxJSONSize+1))
	if err != nil {
		return nil, types.NewError(types.CodeParams, "failed to read body: %v", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if err := h.validator.ValidateJSON(raw); err != nil {
		return nil, types.NewError(types.CodeParams, "%s", err.Error())
	}
	var args interface{}
	if err := sonic.Unmarshal(raw, &args); err != nil {
		return nil, types.NewError(types.CodeParams, "invalid JSON payload: %v", err)
	}
	return args, nil
}

// StatusOf maps an error code to an HTTP status
func StatusOf(code string) int {
	switch code {
	case types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeVersion, types.CodeParams, types.CodeSchema, types.CodeTask:
		return http.StatusBadRequest
	case types.CodeAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	e := types.AsError(err)
	c.JSON(StatusOf(e.Code), gin.H{
		"error":     e.Message,
		"code":      e.Code,
		"timestamp": time.Now().Unix(),
	})
}
