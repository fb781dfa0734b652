package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/middleware"
	"github.com/tudoramariei/votemonitor/internal/services"
	"github.com/tudoramariei/votemonitor/internal/utils"
)

const maxBodyBytes = 5 << 20

// Options configures the services behind the router.
type Options struct {
	Translations *forms.TranslationManager
	Suggestions  services.SuggestionConfig
	Auth         *middleware.Auth
	Commit       string
	BuildTime    string
}

type Router struct {
	forms        *services.FormService
	submissions  *services.SubmissionService
	analytics    *services.AnalyticsService
	exports      *services.ExportService
	translations *services.TranslationService
	auth         *middleware.Auth
	commit       string
	buildTime    string
}

func NewRouter(store Store, opts Options) *Router {
	if opts.Auth == nil {
		opts.Auth = middleware.NewAuth("")
	}
	return &Router{
		forms:        services.NewFormService(store, opts.Translations),
		submissions:  services.NewSubmissionService(store),
		analytics:    services.NewAnalyticsService(store),
		exports:      services.NewExportService(store),
		translations: services.NewTranslationService(store, opts.Suggestions, nil),
		auth:         opts.Auth,
		commit:       opts.Commit,
		buildTime:    opts.BuildTime,
	}
}

// Handler returns the routed API. Everything under /api requires a bearer token.
func (rt *Router) Handler() http.Handler {
	m := mux.NewRouter()
	m.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)
	m.HandleFunc("/version", rt.handleVersion).Methods(http.MethodGet)

	a := m.PathPrefix("/api").Subrouter()
	a.Use(rt.auth.WithAuth, middleware.RequireAuth)

	a.HandleFunc("/forms", rt.handleCreateForm).Methods(http.MethodPost)
	a.HandleFunc("/forms", rt.handleListForms).Methods(http.MethodGet)
	a.HandleFunc("/forms/import", rt.handleImportForm).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}", rt.handleGetForm).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}", rt.handleDeleteForm).Methods(http.MethodDelete)
	a.HandleFunc("/forms/{id}/publish", rt.handlePublish).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/obsolete", rt.handleObsolete).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/history", rt.handleHistory).Methods(http.MethodGet)

	a.HandleFunc("/forms/{id}/questions", rt.handleAddQuestion).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/questions/{questionId}", rt.handleUpdateQuestion).Methods(http.MethodPut)
	a.HandleFunc("/forms/{id}/questions/{questionId}", rt.handleRemoveQuestion).Methods(http.MethodDelete)
	a.HandleFunc("/forms/{id}/questions/{questionId}/position", rt.handleMoveQuestion).Methods(http.MethodPut)
	a.HandleFunc("/forms/{id}/questions/{questionId}/options", rt.handleAddOption).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/questions/{questionId}/options/{optionId}", rt.handleRemoveOption).Methods(http.MethodDelete)

	a.HandleFunc("/forms/{id}/translations", rt.handleAddLanguages).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/translations/status", rt.handleTranslationStatus).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}/translations/sheet", rt.handleExportSheet).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}/translations/sheet", rt.handleImportSheet).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/translations/suggestions", rt.handleSuggestions).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/translations/{languageCode}", rt.handleApplyTranslations).Methods(http.MethodPut)
	a.HandleFunc("/forms/{id}/translations/{languageCode}", rt.handleRemoveLanguage).Methods(http.MethodDelete)

	a.HandleFunc("/forms/{id}/view", rt.handleView).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}/visibility", rt.handleVisibility).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/submissions", rt.handleSubmit).Methods(http.MethodPost)
	a.HandleFunc("/forms/{id}/submissions", rt.handleListSubmissions).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}/submissions/summary", rt.handleSummary).Methods(http.MethodGet)
	a.HandleFunc("/forms/{id}/export", rt.handleExport).Methods(http.MethodGet)
	return m
}

// helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).WithField("status", status).Error("encode response")
		status, body = http.StatusInternalServerError, []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		log.WithError(err).Debug("write response")
	}
}

var statusByCode = map[services.ErrorCode]int{
	services.ErrorInvalid:      http.StatusBadRequest,
	services.ErrorForbidden:    http.StatusForbidden,
	services.ErrorNotFound:     http.StatusNotFound,
	services.ErrorConflict:     http.StatusConflict,
	services.ErrorUnauthorized: http.StatusUnauthorized,
	services.ErrorBadGateway:   http.StatusBadGateway,
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.RequestIDFromContext(r.Context()),
		}).WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": utils.T(middleware.LocaleFromContext(r.Context()), "error.internal"),
		})
		return
	}
	status, known := statusByCode[se.Code]
	if !known {
		status = http.StatusInternalServerError
	}
	body := map[string]any{"error": se.Message, "code": se.Code}
	var ve *forms.ValidationError
	if errors.As(err, &ve) {
		body["violations"] = ve.Violations
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return services.NewInvalidError(utils.T(middleware.LocaleFromContext(r.Context()), "error.body") + ": " + err.Error())
	}
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, services.NewInvalidError(utils.T(middleware.LocaleFromContext(r.Context()), "error.body"))
	}
	return b, nil
}

// caller returns the NGO and actor of the authenticated request.
func caller(r *http.Request) (string, string) {
	ngoID, _ := middleware.NGOIDFromContext(r.Context())
	return ngoID, middleware.ActorFromContext(r.Context())
}

func (rt *Router) respondForm(w http.ResponseWriter, r *http.Request, f *forms.Form, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       "Vote Monitor Forms API",
		"locale":     locale,
		"msg":        utils.T(locale, "health.ok"),
		"commit":     rt.commit,
		"build_time": rt.buildTime,
	})
}

// GET /version
func (rt *Router) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commit": rt.commit, "build_time": rt.buildTime})
}

type createFormRequest struct {
	ID              string               `json:"id"`
	Code            string               `json:"code"`
	FormType        forms.FormType       `json:"formType"`
	Name            forms.TranslatedText `json:"name"`
	Description     forms.TranslatedText `json:"description"`
	Languages       []string             `json:"languages"`
	DefaultLanguage string               `json:"defaultLanguage"`
}

// POST /api/forms
func (rt *Router) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req createFormRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	f, err := rt.forms.CreateForm(r.Context(), ngoID, actor, forms.FormInput{
		ID:              req.ID,
		Code:            req.Code,
		FormType:        req.FormType,
		Name:            req.Name,
		Description:     req.Description,
		Languages:       req.Languages,
		DefaultLanguage: req.DefaultLanguage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// POST /api/forms/import
func (rt *Router) handleImportForm(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	f, err := rt.forms.ImportForm(r.Context(), ngoID, actor, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GET /api/forms
func (rt *Router) handleListForms(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	list, err := rt.forms.ListForms(r.Context(), ngoID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": list})
}

// GET /api/forms/{id}
func (rt *Router) handleGetForm(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	f, err := rt.forms.GetForm(r.Context(), ngoID, mux.Vars(r)["id"])
	rt.respondForm(w, r, f, err)
}

// DELETE /api/forms/{id}
func (rt *Router) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	ngoID, actor := caller(r)
	if err := rt.forms.DeleteForm(r.Context(), ngoID, mux.Vars(r)["id"], actor); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/forms/{id}/publish
func (rt *Router) handlePublish(w http.ResponseWriter, r *http.Request) {
	ngoID, actor := caller(r)
	f, err := rt.forms.Publish(r.Context(), ngoID, mux.Vars(r)["id"], actor)
	rt.respondForm(w, r, f, err)
}

// POST /api/forms/{id}/obsolete
func (rt *Router) handleObsolete(w http.ResponseWriter, r *http.Request) {
	ngoID, actor := caller(r)
	f, err := rt.forms.Obsolete(r.Context(), ngoID, mux.Vars(r)["id"], actor)
	rt.respondForm(w, r, f, err)
}

// GET /api/forms/{id}/history
func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	entries, err := rt.forms.History(r.Context(), ngoID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func decodeQuestion(r *http.Request) (forms.Question, error) {
	data, err := readBody(r)
	if err != nil {
		return forms.Question{}, err
	}
	q, err := forms.DecodeQuestion(data)
	if err != nil {
		return forms.Question{}, services.NewInvalidError(err.Error())
	}
	return q, nil
}

// POST /api/forms/{id}/questions
func (rt *Router) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuestion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	f, err := rt.forms.AddQuestion(r.Context(), ngoID, mux.Vars(r)["id"], actor, q)
	rt.respondForm(w, r, f, err)
}

// PUT /api/forms/{id}/questions/{questionId}
func (rt *Router) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := decodeQuestion(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.UpdateQuestion(r.Context(), ngoID, vars["id"], vars["questionId"], actor, q)
	rt.respondForm(w, r, f, err)
}

// DELETE /api/forms/{id}/questions/{questionId}
func (rt *Router) handleRemoveQuestion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.RemoveQuestion(r.Context(), ngoID, vars["id"], vars["questionId"], actor)
	rt.respondForm(w, r, f, err)
}

// PUT /api/forms/{id}/questions/{questionId}/position
func (rt *Router) handleMoveQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position *int `json:"position"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Position == nil {
		writeError(w, r, services.NewInvalidError("position required"))
		return
	}
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.MoveQuestion(r.Context(), ngoID, vars["id"], vars["questionId"], *req.Position, actor)
	rt.respondForm(w, r, f, err)
}

// POST /api/forms/{id}/questions/{questionId}/options
func (rt *Router) handleAddOption(w http.ResponseWriter, r *http.Request) {
	var opt forms.SelectOption
	if err := decodeBody(r, &opt); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.AddOption(r.Context(), ngoID, vars["id"], vars["questionId"], actor, opt)
	rt.respondForm(w, r, f, err)
}

// DELETE /api/forms/{id}/questions/{questionId}/options/{optionId}
func (rt *Router) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.RemoveOption(r.Context(), ngoID, vars["id"], vars["questionId"], vars["optionId"], actor)
	rt.respondForm(w, r, f, err)
}

// POST /api/forms/{id}/translations {"languageCodes": ["RO", "UK"]}
func (rt *Router) handleAddLanguages(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LanguageCodes []string `json:"languageCodes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	f, err := rt.forms.AddLanguages(r.Context(), ngoID, mux.Vars(r)["id"], actor, req.LanguageCodes)
	rt.respondForm(w, r, f, err)
}

// DELETE /api/forms/{id}/translations/{languageCode}
func (rt *Router) handleRemoveLanguage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.RemoveLanguage(r.Context(), ngoID, vars["id"], actor, vars["languageCode"])
	rt.respondForm(w, r, f, err)
}

// PUT /api/forms/{id}/translations/{languageCode} {"texts": {"questions/q1/text": "..."}}
func (rt *Router) handleApplyTranslations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts map[string]string `json:"texts"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	ngoID, actor := caller(r)
	f, err := rt.forms.ApplyTranslations(r.Context(), ngoID, vars["id"], actor, vars["languageCode"], req.Texts)
	rt.respondForm(w, r, f, err)
}

// GET /api/forms/{id}/translations/status
func (rt *Router) handleTranslationStatus(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	status, err := rt.forms.TranslationStatus(r.Context(), ngoID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"languages": status})
}

// GET /api/forms/{id}/translations/sheet?lang=RO
func (rt *Router) handleExportSheet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		writeError(w, r, services.NewInvalidError("lang required"))
		return
	}
	ngoID, _ := caller(r)
	b, err := rt.forms.ExportTranslationSheet(r.Context(), ngoID, id, lang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+id+"-"+lang+".csv")
	_, _ = w.Write(b)
}

// POST /api/forms/{id}/translations/sheet (text/csv body)
func (rt *Router) handleImportSheet(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	f, err := rt.forms.ImportTranslationSheet(r.Context(), ngoID, mux.Vars(r)["id"], actor, data)
	rt.respondForm(w, r, f, err)
}

// POST /api/forms/{id}/translations/suggestions {"language": "RO"}
func (rt *Router) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language string `json:"language"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, _ := caller(r)
	out, err := rt.translations.SuggestTranslations(r.Context(), ngoID, mux.Vars(r)["id"], req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

// GET /api/forms/{id}/view?lang=RO
func (rt *Router) handleView(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = utils.PreferredLanguage(r.Header.Get("Accept-Language"))
	}
	ngoID, _ := caller(r)
	view, err := rt.forms.View(r.Context(), ngoID, mux.Vars(r)["id"], lang)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/forms/{id}/visibility {"answers": {...}}
func (rt *Router) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers forms.Answers `json:"answers"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, _ := caller(r)
	report, err := rt.forms.Visibility(r.Context(), ngoID, mux.Vars(r)["id"], req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /api/forms/{id}/submissions
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollingStationID string        `json:"pollingStationId"`
		ObserverID       string        `json:"observerId"`
		Answers          forms.Answers `json:"answers"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ngoID, actor := caller(r)
	if req.ObserverID == "" {
		req.ObserverID = actor
	}
	res, err := rt.submissions.Submit(r.Context(), ngoID, mux.Vars(r)["id"], services.SubmitRequest{
		PollingStationID: req.PollingStationID,
		ObserverID:       req.ObserverID,
		Answers:          req.Answers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GET /api/forms/{id}/submissions
func (rt *Router) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	subs, err := rt.submissions.ListSubmissions(r.Context(), ngoID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// GET /api/forms/{id}/submissions/summary?lang=RO
func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	ngoID, _ := caller(r)
	sum, err := rt.analytics.Summary(r.Context(), ngoID, mux.Vars(r)["id"], r.URL.Query().Get("lang"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/forms/{id}/export?format=long|wide&labels=true&lang=RO
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	labels := false
	if v := q.Get("labels"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, services.NewInvalidError("labels must be a boolean"))
			return
		}
		labels = b
	}
	ngoID, _ := caller(r)
	res, err := rt.exports.ExportCSV(r.Context(), ngoID, services.ExportParams{
		FormID: mux.Vars(r)["id"],
		Format: q.Get("format"),
		Labels: labels,
		Lang:   q.Get("lang"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}
