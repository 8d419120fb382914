package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/phonebook-api/internal/config"
	"github.com/vyrodovalexey/phonebook-api/internal/model"
	"github.com/vyrodovalexey/phonebook-api/internal/store"
)

// InfoTimeLayout formats the server time shown on the info page.
const InfoTimeLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// RESTHandler handles REST API requests for persons.
type RESTHandler struct {
	store        store.Store
	logger       *zap.Logger
	events       EventPublisher
	now          func() time.Time
	maxBodyBytes int64
}

// Option configures a RESTHandler.
type Option func(*RESTHandler)

// WithEventPublisher sends create and delete events to p.
func WithEventPublisher(p EventPublisher) Option {
	return func(h *RESTHandler) {
		h.events = p
	}
}

// WithClock overrides the time source used by the info page.
func WithClock(now func() time.Time) Option {
	return func(h *RESTHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMaxBodyBytes overrides the request body limit.
func WithMaxBodyBytes(n int64) Option {
	return func(h *RESTHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(s store.Store, logger *zap.Logger, opts ...Option) *RESTHandler {
	h := &RESTHandler{
		store:        s,
		logger:       logger,
		now:          time.Now,
		maxBodyBytes: config.DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the phonebook routes with the router.
// Read routes answer HEAD as well as GET.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/persons", h.ListPersons).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/persons", h.CreatePerson).Methods(http.MethodPost)
	router.HandleFunc("/api/persons/{id}", h.GetPerson).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/persons/{id}", h.DeletePerson).Methods(http.MethodDelete)
	router.HandleFunc("/info", h.Info).Methods(http.MethodGet, http.MethodHead)
}

// ListPersons handles GET /api/persons requests.
func (h *RESTHandler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.store.List(r.Context())
	if err != nil {
		h.internalError(w, err, "list persons")
		return
	}

	if persons == nil {
		persons = []model.Person{}
	}

	writeJSON(h.logger, w, http.StatusOK, persons)
}

// Info handles GET /info requests with a short HTML summary.
func (h *RESTHandler) Info(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.internalError(w, err, "count persons")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, "<p>Phonebook has info for %d people</p>\n<p>%s</p>\n",
		count, h.now().Format(InfoTimeLayout)); err != nil {
		h.logger.Debug("failed to write info page", zap.Error(err))
	}
}

// GetPerson handles GET /api/persons/{id} requests.
// A missing person yields 404 with an empty body.
func (h *RESTHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id := model.ParsePersonID(mux.Vars(r)["id"])

	person, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "get person")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, person)
}

// DeletePerson handles DELETE /api/persons/{id} requests.
// The response is 204 whether or not the person existed.
func (h *RESTHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id := model.ParsePersonID(mux.Vars(r)["id"])

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.internalError(w, err, "delete person")
		return
	}

	h.publish(model.NewDeletedEvent(id))
	w.WriteHeader(http.StatusNoContent)
}

// CreatePerson handles POST /api/persons requests.
// Presence of name and number is checked before name uniqueness.
func (h *RESTHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := h.decodeInput(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(h.logger, w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		h.logger.Debug("invalid request body", zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, MsgMalformedBody)
		return
	}

	if err := input.Validate(); err != nil {
		h.logger.Debug("validation failed", zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.store.FindByName(ctx, input.Name)
	switch {
	case err == nil:
		h.rejectDuplicate(w, input.Name)
		return
	case !errors.Is(err, store.ErrNotFound):
		h.internalError(w, err, "find person by name")
		return
	}

	person, err := h.store.Create(ctx, input.Name, input.Number)
	if errors.Is(err, store.ErrAlreadyExists) {
		h.rejectDuplicate(w, input.Name)
		return
	}
	if err != nil {
		h.internalError(w, err, "create person")
		return
	}

	h.publish(model.NewCreatedEvent(*person))
	writeJSON(h.logger, w, http.StatusOK, person)
}

// errNotJSONObject marks a body whose top-level value is neither an object nor an array.
var errNotJSONObject = errors.New("request body must be a JSON object")

// errTrailingData marks a body with content after the first JSON value.
var errTrailingData = errors.New("unexpected data after JSON value")

// decodeInput reads the create request body. Only application/json bodies
// are parsed. An empty or non-JSON body, or a JSON array, yields a zero
// PersonInput so that it fails the presence check.
func (h *RESTHandler) decodeInput(w http.ResponseWriter, r *http.Request) (model.PersonInput, error) {
	var input model.PersonInput
	if r.Body == nil || !isJSONContent(r) {
		return input, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return input, nil
		}
		return input, err
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return input, err
	}

	switch bytes.TrimSpace(raw)[0] {
	case '{':
		if err := json.Unmarshal(raw, &input); err != nil {
			return model.PersonInput{}, err
		}
	case '[':
		// Arrays carry no name or number.
	default:
		return input, errNotJSONObject
	}

	return input, nil
}

// isJSONContent reports whether the request declares a JSON body.
func isJSONContent(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (h *RESTHandler) rejectDuplicate(w http.ResponseWriter, name string) {
	h.logger.Debug("validation failed", zap.String("name", name), zap.Error(model.ErrNameNotUnique))
	writeError(h.logger, w, http.StatusBadRequest, model.ErrNameNotUnique.Error())
}

func (h *RESTHandler) internalError(w http.ResponseWriter, err error, operation string) {
	h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
	writeError(h.logger, w, http.StatusInternalServerError, MsgInternalError)
}

func (h *RESTHandler) publish(event model.PersonEvent) {
	if h.events != nil {
		h.events.Publish(event)
	}
}
