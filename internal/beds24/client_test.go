package beds24

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAvailabilitySendsToken(t *testing.T) {
	var gotToken, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("token")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, APIKey: "secret"})
	ok, err := client.Availability(context.Background(), "prop-9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret", gotToken)
	require.Equal(t, "/properties/prop-9/availability", gotPath)
}

func TestAvailabilityNon2xxIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL})
	ok, err := client.Availability(context.Background(), "prop-9")
	require.Error(t, err)
	require.False(t, ok)
}

func TestExtendBookingPostsNewEndDate(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, WritesEnabled: true})
	newEnd := time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, client.ExtendBooking(context.Background(), 42, newEnd))
	require.Equal(t, "/bookings/42/extend", gotPath)
	require.Equal(t, "2025-09-30", gotBody["new_end_date"])
}

func TestExtendBookingRefusesWhenWritesDisabled(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewHTTPClient(Config{BaseURL: server.URL, WritesEnabled: false})
	err := client.ExtendBooking(context.Background(), 42, time.Now())
	require.ErrorIs(t, err, ErrWritesDisabled)
	require.False(t, called, "disabled writes must never reach the network")
}
