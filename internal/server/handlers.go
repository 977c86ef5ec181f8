package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agleyzer/hlslocalizer/internal/attrlist"
	"github.com/agleyzer/hlslocalizer/internal/ident"
	"github.com/agleyzer/hlslocalizer/internal/localizer"
	"github.com/agleyzer/hlslocalizer/internal/metrics"
	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/gorilla/mux"
)

// LeaderHeader carries the Raft leader address on writes rejected by a follower.
const LeaderHeader = "X-Raft-Leader"

var knownTags = []string{
	attrlist.TagStreamInf,
	attrlist.TagIFrameStreamInf,
	attrlist.TagMedia,
	attrlist.TagKey,
	attrlist.TagSessionKey,
	attrlist.TagMap,
	attrlist.TagStart,
}

type attributesRequest struct {
	Line   string `json:"line"`
	Prefix string `json:"prefix"`
}

type addItemRequest struct {
	URL string `json:"url"`
	ID  string `json:"id,omitempty"`
}

type addItemResponse struct {
	Item  registry.Item `json:"item"`
	Tasks int           `json:"tasks"`
	Files []string      `json:"files"`
}

type completeTaskRequest struct {
	Order int `json:"order"`
}

type setStateRequest struct {
	State string `json:"state"`
}

// itemView is an item as returned by the API.
type itemView struct {
	registry.Item
	Progress float64 `json:"progress"`
}

func newItemView(item registry.Item) itemView {
	return itemView{Item: item, Progress: item.Progress()}
}

// handleHealth serves health check information
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}

	if items, err := s.store.List(); err == nil {
		health["items"] = len(items)
		metrics.ObserveItems(items)
	}

	if s.cluster != nil {
		health["cluster"] = map[string]interface{}{
			"state":  s.cluster.State(),
			"leader": s.cluster.LeaderAddr(),
		}
		metrics.ObserveLeader(s.cluster.IsLeader())
	}

	writeJSON(w, http.StatusOK, health)
}

// handleAttributes parses one attribute-list line.
func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	attrs := attrlist.Parse(req.Line, req.Prefix)
	metrics.AttributeListsParsed.WithLabelValues(tagLabel(req.Prefix)).Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attributes": attrs,
	})
}

// handleIdentifier returns the identifier of the input query parameter.
func (s *Server) handleIdentifier(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("input") {
		http.Error(w, "Missing input parameter", http.StatusBadRequest)
		return
	}

	input := query.Get("input")
	metrics.IdentifiersComputed.Inc()

	writeJSON(w, http.StatusOK, map[string]string{
		"input":      input,
		"identifier": ident.Of(input),
	})
}

// handleAddItem builds a download plan for a playlist URL and registers the item.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	if !s.requireLeader(w) {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = registry.NewItemID()
	}

	if _, err := s.store.Get(req.ID); err == nil {
		http.Error(w, "Item already exists", http.StatusConflict)
		return
	}

	start := time.Now()
	plan, err := s.localizer.Localize(r.Context(), req.ID, req.URL)
	metrics.PlanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PlansTotal.WithLabelValues("error").Inc()
		s.logger.Error("failed to build plan", "url", req.URL, "error", err)

		status := http.StatusBadGateway
		if errors.Is(err, localizer.ErrUnknownPlaylistType) || errors.Is(err, localizer.ErrMalformedPlaylist) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	metrics.PlansTotal.WithLabelValues("ok").Inc()
	for _, t := range plan.Tasks {
		metrics.TasksPlanned.WithLabelValues(t.Type.String()).Inc()
	}

	item := registry.Item{
		ID:            req.ID,
		URL:           req.URL,
		State:         registry.StateMetadataLoaded,
		TotalTasks:    len(plan.Tasks),
		Duration:      plan.Duration,
		EstimatedSize: plan.EstimatedSize,
		AddedAt:       time.Now().UTC(),
	}
	stored := registry.Plan{Tasks: plan.Tasks, Master: plan.Master, Media: plan.Media}
	if err := s.store.Add(item, stored); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("registered item", "id", item.ID, "url", item.URL, "tasks", item.TotalTasks)

	writeJSON(w, http.StatusCreated, addItemResponse{
		Item:  item,
		Tasks: len(plan.Tasks),
		Files: plan.Files(),
	})
}

// handleListItems lists all registered items.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.List()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	metrics.ObserveItems(items)

	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, newItemView(item))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleGetItem returns a single item.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(item))
}

// handleRemoveItem deletes an item and its plan.
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if !s.requireLeader(w) {
		return
	}

	if err := s.store.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetState moves an item to another state, e.g. paused.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	if !s.requireLeader(w) {
		return
	}

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := registry.ParseState(req.State)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.store.SetState(id, state); err != nil {
		s.writeStoreError(w, err)
		return
	}

	item, err := s.store.Get(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(item))
}

// handleTasks lists the download tasks of an item's plan.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.Plan(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.Tasks)
}

// handleCompleteTask records that one task of an item was downloaded.
func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireLeader(w) {
		return
	}

	var req completeTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := s.store.CompleteTask(mux.Vars(r)["id"], req.Order)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	metrics.TasksCompleted.Inc()

	writeJSON(w, http.StatusOK, newItemView(item))
}

// handleMaster serves the localized master playlist.
func (s *Server) handleMaster(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.Plan(mux.Vars(r)["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writePlaylist(w, plan.Master)
}

// handleMedia serves a localized media playlist referenced by the master.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	plan, err := s.store.Plan(vars["id"])
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	text, ok := plan.Media[vars["kind"]+"/"+vars["name"]]
	if !ok {
		http.Error(w, "Playlist not found", http.StatusNotFound)
		return
	}
	writePlaylist(w, text)
}

// requireLeader rejects writes on a follower, pointing the client at the leader.
func (s *Server) requireLeader(w http.ResponseWriter) bool {
	if s.cluster == nil || s.cluster.IsLeader() {
		return true
	}
	if leader := s.cluster.LeaderAddr(); leader != "" {
		w.Header().Set(LeaderHeader, leader)
	}
	http.Error(w, "Not the cluster leader", http.StatusServiceUnavailable)
	return false
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		http.Error(w, "Item not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrExists):
		http.Error(w, "Item already exists", http.StatusConflict)
	case errors.Is(err, registry.ErrTaskNotFound):
		http.Error(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, registry.ErrTaskDone):
		http.Error(w, "Task already complete", http.StatusConflict)
	default:
		s.logger.Error("registry error", "error", err)
		http.Error(w, "Registry error", http.StatusInternalServerError)
	}
}

func tagLabel(prefix string) string {
	for _, tag := range knownTags {
		if prefix == tag {
			return tag
		}
	}
	return "other"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writePlaylist(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}
