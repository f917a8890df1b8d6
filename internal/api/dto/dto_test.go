package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

func TestUpdateTicketRequest_AssignedTo(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		set    bool
		wantID *int64
	}{
		{"absent", `{"expected_version": 1}`, false, nil},
		{"null", `{"assigned_to": null, "expected_version": 1}`, true, nil},
		{"id", `{"assigned_to": 7, "expected_version": 1}`, true, ptr(7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateTicketRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.set, req.AssignedTo.Set)
			assert.Equal(t, tt.wantID, req.AssignedTo.ID)
		})
	}

	var req UpdateTicketRequest
	assert.Error(t, json.Unmarshal([]byte(`{"assigned_to": "bob"}`), &req))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   any
		field string
	}{
		{"missing title", &CreateTicketRequest{Description: "d"}, "title"},
		{"bad priority", &CreateTicketRequest{Title: "t", Description: "d", Priority: "urgent"}, "priority"},
		{"missing version", &UpdateTicketRequest{}, "expected_version"},
		{"bad email", &UserRegisterRequest{Name: "n", Username: "u", Email: "nope", Password: "secret1"}, "email"},
		{"short password", &UserRegisterRequest{Name: "n", Username: "u", Email: "u@example.com", Password: "123"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			de := apperrors.ToDomainError(err)
			require.NotNil(t, de)
			assert.Equal(t, apperrors.CodeValidation, de.Code)
			assert.Equal(t, tt.field, de.Details["field"])
		})
	}

	bad := UpdateTicketRequest{ExpectedVersion: 1}
	require.NoError(t, json.Unmarshal([]byte(`{"status":"done"}`), &bad))
	assert.Error(t, Validate(&bad))

	assert.NoError(t, Validate(&CreateTicketRequest{Title: "t", Description: "d"}))
	assert.NoError(t, Validate(&ProfileUpdateRequest{}))
}

func ptr(id int64) *int64 { return &id }
