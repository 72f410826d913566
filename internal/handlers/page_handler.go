package handlers

import (
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/interfaces"
)

// PageHandler drives and inspects a session's page
type PageHandler struct {
	pages  interfaces.PageService
	logger arbor.ILogger
}

func NewPageHandler(pages interfaces.PageService, logger arbor.ILogger) *PageHandler {
	return &PageHandler{
		pages:  pages,
		logger: logger,
	}
}

type navigateRequest struct {
	URL string `json:"url"`
}

// NavigateHandler handles POST /api/sessions/{id}/navigate
func (h *PageHandler) NavigateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body navigateRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if body.URL == "" {
		WriteServiceError(w, h.logger, fmt.Errorf("%w: url is required", interfaces.ErrInvalidRequest))
		return
	}

	url, err := h.pages.Navigate(r.Context(), APIPathID(r), body.URL)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// URLHandler handles GET /api/sessions/{id}/url
func (h *PageHandler) URLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	url, err := h.pages.URL(r.Context(), APIPathID(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

// ContentHandler handles GET /api/sessions/{id}/content
func (h *PageHandler) ContentHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	content, err := h.pages.Content(r.Context(), APIPathID(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, content)
}

// HTMLHandler handles GET /api/sessions/{id}/html
func (h *PageHandler) HTMLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	html, err := h.pages.HTML(r.Context(), APIPathID(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"html": html})
}

// FormsHandler handles GET /api/sessions/{id}/forms
func (h *PageHandler) FormsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	forms, err := h.pages.Forms(r.Context(), APIPathID(r))
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"forms": forms})
}

type formRequest struct {
	FormSelector string            `json:"formSelector"`
	Fields       map[string]string `json:"fields"`
}

// FillFormHandler handles POST /api/sessions/{id}/forms/fill
func (h *PageHandler) FillFormHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body formRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if err := h.pages.FillForm(r.Context(), APIPathID(r), body.FormSelector, body.Fields); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "fieldsFilled"})
}

// SubmitFormHandler handles POST /api/sessions/{id}/forms/submit
func (h *PageHandler) SubmitFormHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body formRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	url, err := h.pages.SubmitForm(r.Context(), APIPathID(r), body.FormSelector)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "formSubmitted", "url": url})
}

type elementRequest struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// ClickHandler handles POST /api/sessions/{id}/element/click
func (h *PageHandler) ClickHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body elementRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if err := h.pages.Click(r.Context(), APIPathID(r), body.Selector); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "elementClicked"})
}

// SelectHandler handles POST /api/sessions/{id}/element/select
func (h *PageHandler) SelectHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body elementRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if err := h.pages.Select(r.Context(), APIPathID(r), body.Selector, body.Value); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "optionSelected"})
}

// ExecuteHandler handles POST /api/sessions/{id}/execute
func (h *PageHandler) ExecuteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Script string `json:"script"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	result, err := h.pages.Execute(r.Context(), APIPathID(r), body.Script)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}
