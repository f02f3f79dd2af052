package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"isp-agent-service/internal/auth"
	"isp-agent-service/internal/logging"
	"isp-agent-service/internal/models"
	"isp-agent-service/internal/push"
	"isp-agent-service/internal/services"
)

const maxWebhookBody = 1 << 20

// WebhookHandlers receive notification triggers from the billing system.
type WebhookHandlers struct {
	Tenants services.TenantStore
	Push    push.Fanout
	Logger  logging.Logger
}

// webhookFields merges query parameters with a JSON or form body. Body
// values win.
func webhookFields(r *http.Request) (map[string]any, error) {
	fields := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	if r.Method != http.MethodPost || r.Body == nil {
		return fields, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fields, nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for k, v := range r.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	// Non-object bodies are ignored and only the query is used.
	if obj, ok := body.(map[string]any); ok {
		for k, v := range obj {
			fields[k] = v
		}
	}
	return fields, nil
}

func (h *WebhookHandlers) HandleSGPWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.OrDiscard(h.Logger)

	fields, err := webhookFields(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if r.Method == http.MethodGet && (fields["method"] == "POST" || fields["do_post"] == "true") {
		log.Warn("billing webhook announced a POST but arrived as GET; the URL is probably missing its trailing slash and the body was lost")
	}

	token := push.FieldString(fields["provider_token"])
	if token == "" {
		writeError(w, http.StatusUnauthorized, "provider_token obrigatório.")
		return
	}
	tenant, err := services.ResolveTenant(r.Context(), h.Tenants, token)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			writeError(w, http.StatusForbidden, "Token inválido ou provedor inativo.")
			return
		}
		log.WithError(err).Error("webhook tenant lookup failed")
		writeError(w, http.StatusInternalServerError, "webhook_failed")
		return
	}

	payload := push.ParseWebhook(fields)
	if err := payload.CheckProvider(tenant.ID); err != nil {
		status := http.StatusForbidden
		if errors.Is(err, push.ErrInvalidProviderID) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	payload, err = payload.Validate()
	if err != nil {
		log.WithError(err).WithField("tenant_id", tenant.ID).Warn("webhook rejected")
		if errors.Is(err, push.ErrMissingIdentifier) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "hint": push.IdentifierHint})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Push.Send(r.Context(), payload.SendRequest(tenant.ID))
	if err != nil {
		log.WithError(err).Error("webhook push failed")
		writeError(w, http.StatusInternalServerError, "push_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ScheduleStore interface {
	CreateScheduled(ctx context.Context, n models.ScheduledNotification) (int64, error)
}

// AdminPushHandlers serve the panel's manual and scheduled sends. Routes
// are wrapped by WithAdminAuth.
type AdminPushHandlers struct {
	Push      push.Fanout
	Schedules ScheduleStore
	Logger    logging.Logger
	Now       func() time.Time
}

func (h *AdminPushHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func writeAdminTenantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrProviderRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusForbidden, err.Error())
	}
}

func (h *AdminPushHandlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	claims := AdminClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_bearer_token")
		return
	}
	var req models.AdminPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Normalize()
	tenantID, err := claims.TargetTenant(req.ProviderID)
	if err != nil {
		writeAdminTenantError(w, err)
		return
	}
	if problem := adminPushMessages.check(req); problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	res, err := h.Push.Send(r.Context(), push.SendRequest{
		TenantID: tenantID,
		Title:    req.Title,
		Body:     req.Message,
		Data:     map[string]string{"url": req.Link, "type": "manual"},
		Source:   push.SourceAdmin,
		Target:   req.Target,
		Segment:  req.SegmentType,
		Tags:     push.SplitTags(req.SegmentTags),
		Search:   req.SegmentSearch,
	})
	if err != nil {
		logging.OrDiscard(h.Logger).WithError(err).Error("admin push failed")
		writeError(w, http.StatusInternalServerError, "push_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminPushHandlers) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	claims := AdminClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_bearer_token")
		return
	}
	var req models.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Normalize()
	tenantID, err := claims.TargetTenant(req.ProviderID)
	if err != nil {
		writeAdminTenantError(w, err)
		return
	}
	if problem := adminPushMessages.check(req); problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}
	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduled_at deve estar no formato RFC3339.")
		return
	}
	if at.Before(h.now()) {
		writeError(w, http.StatusBadRequest, "scheduled_at deve estar no futuro.")
		return
	}
	kind := req.Type
	if kind == "" {
		kind = "info"
	}
	segment := req.SegmentType
	if segment == "" {
		segment = "all"
	}

	id, err := h.Schedules.CreateScheduled(r.Context(), models.ScheduledNotification{
		TenantID:      tenantID,
		Title:         req.Title,
		Body:          req.Message,
		Type:          kind,
		ImageURL:      req.ImageURL,
		SegmentType:   segment,
		SegmentTags:   req.SegmentTags,
		SegmentSearch: req.SegmentSearch,
		ScheduledAt:   at,
		Status:        models.ScheduledPending,
	})
	if err != nil {
		logging.OrDiscard(h.Logger).WithError(err).Error("schedule push failed")
		writeError(w, http.StatusInternalServerError, "schedule_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": models.ScheduledPending, "scheduled_at": at})
}
