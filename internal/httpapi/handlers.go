package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/billing"
	"voicedesk/internal/reporting"
	"voicedesk/internal/tasks"
	"voicedesk/internal/tenants"
	"voicedesk/internal/voice"
	"voicedesk/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Tenants *tenants.Service
	Tasks   *tasks.Service
	Billing *billing.Service
	Audit   *audit.Service
	Reports *reporting.Service
}

// vendorError translates service errors into the response taxonomy:
// 400 for bad input, the vendor's status code for vendor failures, 500 for
// configuration problems. Persistence failures never reach here; they are
// swallowed inside the tasks service.
func writeTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tasks.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, tasks.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		if code, ok := voice.StatusCodeOf(err); ok {
			// Generic message only; the vendor body was already logged
			// server-side.
			c.AbortWithStatusJSON(code, gin.H{"error": "voice vendor request failed"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --- Auth ---

func (h Handlers) Register(c *gin.Context) {
	var req tenants.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	result, err := h.Tenants.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, tenants.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant_name, email, first_name and a password of 8+ chars required"})
		case errors.Is(err, tenants.ErrEmailTaken):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h Handlers) Login(c *gin.Context) {
	var req tenants.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	member, pair, err := h.Tenants.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, tenants.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		case errors.Is(err, tenants.ErrInvalidCredentials):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"member":        member,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h Handlers) Me(c *gin.Context) {
	mid, _ := auth.MemberID(c.Request.Context())
	tid, _ := auth.TenantID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"member_id": mid, "tenant_id": tid, "role": role})
}

// --- Calls ---

type placeCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	// Phone is accepted as an alias for phone_number.
	Phone       string `json:"phone"`
	CompanyName string `json:"company_name,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Subject     string `json:"subject,omitempty"`
}

// PlaceCall dials out via the voice vendor and mirrors the call as a task.
// The response reports the vendor outcome; mirror-write failures are audited
// server-side and never surface here.
func (h Handlers) PlaceCall(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	memberID, _ := auth.MemberID(c.Request.Context())

	var req placeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	to := req.PhoneNumber
	if to == "" {
		to = req.Phone
	}
	if to == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number required"})
		return
	}

	metadata := map[string]string{}
	if req.CompanyName != "" {
		metadata["company"] = req.CompanyName
	}
	if req.ContactName != "" {
		metadata["contact"] = req.ContactName
	}
	if req.Email != "" {
		metadata["email"] = req.Email
	}

	task, err := h.Tasks.InitiateCall(c.Request.Context(), tasks.InitiateCallRequest{
		TenantID: tenantID,
		MemberID: memberID,
		To:       to,
		Subject:  req.Subject,
		Metadata: metadata,
	})
	if err != nil {
		if errors.Is(err, tasks.ErrVendorNoCallID) {
			// The dial was accepted but the vendor gave us nothing to poll.
			// The failed placeholder task keeps the attempt visible.
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"success": false,
				"task_id": task.ID,
				"error":   "vendor returned no call id",
			})
			return
		}
		writeTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"agent_call_id": task.AgentCallID,
		"task_id":       task.ID,
		"status":        task.CallStatus,
		"data":          task,
	})
}

// GetCallStatus refreshes one call against vendor truth and returns the
// normalized envelope. ?withAudio=1 also fetches and links the recording
// when the call has completed.
func (h Handlers) GetCallStatus(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}
	withAudio, _ := strconv.ParseBool(c.DefaultQuery("withAudio", "false"))

	env, err := h.Tasks.RefreshStatus(c.Request.Context(), callID, withAudio)
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// GetCallAudio streams the stored recording bytes, fetching from the vendor
// first if no recording is linked yet.
func (h Handlers) GetCallAudio(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	if _, err := h.Tasks.FetchAudio(c.Request.Context(), callID); err != nil {
		if errors.Is(err, tasks.ErrAudioFetchInFlight) {
			c.Header("Retry-After", "2")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "audio fetch in progress"})
			return
		}
		writeTaskError(c, err)
		return
	}

	file, rc, err := h.Tasks.OpenAudio(c.Request.Context(), callID)
	if err != nil {
		writeTaskError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", file.ContentType)
	if file.SizeBytes > 0 {
		c.Header("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are already out; all we can do is note the broken stream.
		logger.FromGin(c).Warn("audio stream interrupted", "call_id", callID, "error", err)
	}
}

// IngestTask records a completed interaction pushed by the voice agent.
func (h Handlers) IngestTask(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var req tasks.IngestCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.TenantID = tenantID

	task, err := h.Tasks.IngestCompletion(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "leads_info or research_info required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "task_id": task.ID})
}

func (h Handlers) ListTasks(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	out, err := h.Tasks.ListTasks(c.Request.Context(), tenantID, limit)
	if err != nil {
		writeTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": out})
}

// --- Tenant profile ---

func (h Handlers) GetTenantProfile(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	t, err := h.Tenants.GetTenant(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) UpdateTenantProfile(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var t tenants.Tenant
	if err := c.ShouldBindJSON(&t); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	t.ID = tenantID

	updated, err := h.Tenants.UpdateTenantProfile(c.Request.Context(), t)
	if err != nil {
		if errors.Is(err, tenants.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "name required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h Handlers) AddMember(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}

	var req tenants.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	member, err := h.Tenants.AddMember(c.Request.Context(), tenantID, req)
	if err != nil {
		switch {
		case errors.Is(err, tenants.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email, first_name, role and a password of 8+ chars required"})
		case errors.Is(err, tenants.ErrEmailTaken):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email already registered"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "member creation failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h Handlers) ListMembers(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	members, err := h.Tenants.ListMembers(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// --- Billing / reporting / audit ---

func (h Handlers) GetSpend(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	spend, err := h.Billing.GetSpend(c.Request.Context(), tenantID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "spend lookup failed"})
		return
	}
	c.JSON(http.StatusOK, spend)
}

func parseRange(c *gin.Context) (reporting.TimeRange, bool) {
	now := time.Now().UTC()
	r := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, false
		}
		r.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return reporting.TimeRange{}, false
		}
		r.To = t
	}
	return r, true
}

func (h Handlers) TasksSummary(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC3339"})
		return
	}
	out, err := h.Reports.TasksSummary(c.Request.Context(), reporting.TasksSummaryRequest{TenantID: tenantID, Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SpendSummary(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	rng, ok := parseRange(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from/to must be RFC3339"})
		return
	}
	out, err := h.Reports.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{TenantID: tenantID, Range: rng})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ListAuditEvents(c *gin.Context) {
	tenantID, err := auth.TenantID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "tenant_id required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.Audit.ListByTenant(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
