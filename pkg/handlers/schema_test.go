package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-schema-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-schema-engine/pkg/models"
)

func TestSchemaHandler_GetTable(t *testing.T) {
	res := &mockResolver{desc: &models.TableDescriptor{TableName: "ORDERS", Provenance: models.ProvenanceStatic}}
	handler := NewSchemaHandler(res, zap.NewNop())

	rec := serve(handler, http.MethodGet, "/api/schema/tables/orders?ttl_minutes=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var desc models.TableDescriptor
	if err := json.NewDecoder(rec.Body).Decode(&desc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if desc.TableName != "ORDERS" {
		t.Errorf("expected ORDERS, got %s", desc.TableName)
	}
	if res.lastTable != "orders" || res.lastOpts != 1 {
		t.Errorf("unexpected resolve call: table=%q opts=%d", res.lastTable, res.lastOpts)
	}
	if res.liveCalls != 0 {
		t.Error("expected cached resolution, got live")
	}

	serve(handler, http.MethodGet, "/api/schema/tables/orders?live=true")
	if res.liveCalls != 1 {
		t.Errorf("expected one live resolution, got %d", res.liveCalls)
	}
}

func TestSchemaHandler_GetTable_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"bad ttl", "/api/schema/tables/ORDERS?ttl_minutes=abc", nil, http.StatusBadRequest},
		{"strict mode", "/api/schema/tables/SECRET", &apperrors.AccessDeniedError{Table: "SECRET"}, http.StatusForbidden},
		{"missing", "/api/schema/tables/NOPE", &apperrors.SchemaNotFoundError{Table: "NOPE"}, http.StatusNotFound},
		{"dependencies missing", "/api/schema/tables/NOPE/dependencies", &apperrors.SchemaNotFoundError{Table: "NOPE"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSchemaHandler(&mockResolver{err: tt.err}, zap.NewNop())
			rec := serve(handler, http.MethodGet, tt.path)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestSchemaHandler_Catalog(t *testing.T) {
	res := &mockResolver{
		tables:  []models.TableSummary{{TableName: "CUSTOMERS"}, {TableName: "ORDERS"}},
		preload: models.PreloadStatus{RunID: "run-7", StaticTables: []string{"CUSTOMERS", "ORDERS"}},
		strict:  true,
	}
	handler := NewSchemaHandler(res, zap.NewNop())

	var list struct {
		Count int `json:"count"`
	}
	rec := serve(handler, http.MethodGet, "/api/schema/tables")
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || list.Count != 2 {
		t.Errorf("expected 2 tables, got %d (err=%v)", list.Count, err)
	}

	var summary models.SchemaSummary
	rec = serve(handler, http.MethodGet, "/api/schema/summary")
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil || !summary.StrictMode {
		t.Errorf("unexpected summary %+v (err=%v)", summary, err)
	}

	var preload models.PreloadStatus
	rec = serve(handler, http.MethodGet, "/api/schema/preload")
	if err := json.NewDecoder(rec.Body).Decode(&preload); err != nil || preload.RunID != "run-7" {
		t.Errorf("unexpected preload status %+v (err=%v)", preload, err)
	}

	rec = serve(handler, http.MethodGet, "/api/schema/tables/ORDERS/dependencies")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for dependencies, got %d", rec.Code)
	}
}

func TestSchemaHandler_Maintenance(t *testing.T) {
	res := &mockResolver{}
	handler := NewSchemaHandler(res, zap.NewNop())

	rec := serve(handler, http.MethodDelete, "/api/schema/cache/ORDER*")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for invalidate, got %d", rec.Code)
	}
	if res.invalidate != "ORDER*" {
		t.Errorf("expected pattern ORDER*, got %q", res.invalidate)
	}

	rec = serve(handler, http.MethodDelete, "/api/schema/cache/%5B")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad pattern, got %d", rec.Code)
	}

	rec = serve(handler, http.MethodPost, "/api/schema/reload")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for reload, got %d", rec.Code)
	}
	var reload struct {
		Reloaded  bool `json:"reloaded"`
		Preloaded int  `json:"preloaded"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&reload); err != nil || !reload.Reloaded || reload.Preloaded != 2 {
		t.Errorf("unexpected reload response %+v (err=%v)", reload, err)
	}

	res.reloadErr = &apperrors.ConfigLoadError{Path: "tables_list.json", Err: errors.New("unexpected EOF")}
	rec = serve(handler, http.MethodPost, "/api/schema/reload")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for failed reload, got %d", rec.Code)
	}

	rec = serve(handler, http.MethodGet, "/api/schema/reload")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET reload, got %d", rec.Code)
	}
}
