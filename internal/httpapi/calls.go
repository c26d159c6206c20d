package httpapi

import (
	"net/http"

	"webconferencing/internal/calls"

	"github.com/gin-gonic/gin"
)

type clientRequest struct {
	ClientID string `json:"client_id"`
}

type roomRequest struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Members []string `json:"members"`
}

// writeCall responds with c, or 404 when the engine found no call.
func writeCall(c *gin.Context, status int, call *calls.Call, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if call == nil {
		notFound(c, "call not found")
		return
	}
	c.JSON(status, call)
}

// bindClient reads an optional {"client_id"} body.
func bindClient(c *gin.Context) (string, bool) {
	var req clientRequest
	if c.Request.ContentLength == 0 {
		return c.Query("client_id"), true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return "", false
	}
	return req.ClientID, true
}

func (h Handlers) AddCall(c *gin.Context) {
	var req calls.NewCall
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	call, err := h.Calls.AddCall(c.Request.Context(), req)
	writeCall(c, http.StatusCreated, call, err)
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.GetCall(c.Request.Context(), c.Param("id"))
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) StartCall(c *gin.Context) {
	clientID, ok := bindClient(c)
	if !ok {
		return
	}
	call, err := h.Calls.StartCall(c.Request.Context(), c.Param("id"), clientID)
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) JoinCall(c *gin.Context) {
	clientID, ok := bindClient(c)
	if !ok {
		return
	}
	call, err := h.Calls.JoinCall(c.Request.Context(), c.Param("id"), callerID(c), clientID)
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) LeaveCall(c *gin.Context) {
	clientID, ok := bindClient(c)
	if !ok {
		return
	}
	call, err := h.Calls.LeaveCall(c.Request.Context(), c.Param("id"), callerID(c), clientID)
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) StopCall(c *gin.Context) {
	call, err := h.Calls.StopCall(c.Request.Context(), c.Param("id"), false)
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) RemoveCall(c *gin.Context) {
	call, err := h.Calls.StopCall(c.Request.Context(), c.Param("id"), true)
	writeCall(c, http.StatusOK, call, err)
}

func (h Handlers) MyCalls(c *gin.Context) {
	states, err := h.Calls.GetUserCalls(c.Request.Context(), callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if states == nil {
		states = []calls.CallStateInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": states})
}

// --- Identities ---

func writeIdentity(c *gin.Context, id *calls.Identity, err error, what string) {
	if err != nil {
		writeError(c, err)
		return
	}
	if id == nil {
		notFound(c, what+" not found")
		return
	}
	c.JSON(http.StatusOK, id)
}

func (h Handlers) UserInfo(c *gin.Context) {
	id := c.Param("id")
	if id == "me" {
		id = callerID(c)
	}
	u, err := h.Calls.UserInfo(c.Request.Context(), id)
	writeIdentity(c, u, err, "user")
}

func (h Handlers) SpaceInfo(c *gin.Context) {
	s, err := h.Calls.SpaceInfo(c.Request.Context(), c.Param("id"))
	writeIdentity(c, s, err, "space")
}

func (h Handlers) RoomInfo(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	r, err := h.Calls.RoomInfo(c.Request.Context(), c.Param("id"), req.Name, req.Title, req.Members)
	writeIdentity(c, r, err, "room")
}
