package repository_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-dev/mcp-registry/internal/mcp"
	"github.com/petrel-dev/mcp-registry/internal/mcperr"
	"github.com/petrel-dev/mcp-registry/internal/repository"
)

func openTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleServer(id string) repository.NewServer {
	return repository.NewServer{
		ID:          id,
		Name:        "weather",
		Description: "weather lookup server",
		Transport:   "http",
		URL:         "http://localhost:9191",
		Headers:     map[string]string{},
		Env:         map[string]string{},
		Tools: []mcp.Tool{
			{Name: "forecast", Description: "7 day forecast", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
		Resources: []mcp.Resource{
			{URI: "weather://stations", Name: "stations", MimeType: "application/json"},
		},
		Prompts: []mcp.Prompt{
			{Name: "summarize", Description: "summarize a forecast"},
		},
	}
}

func TestInsertAndGetServerRoundTripsCapabilities(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))

	rec, err := store.GetServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "weather", rec.Name)
	assert.Equal(t, repository.StatusActive, rec.Status)
	require.Len(t, rec.Tools, 1)
	assert.Equal(t, "forecast", rec.Tools[0].Name)
	require.Len(t, rec.Resources, 1)
	assert.Equal(t, "weather://stations", rec.Resources[0].URI)
	require.Len(t, rec.Prompts, 1)
	assert.Equal(t, "summarize", rec.Prompts[0].Name)
}

func TestInsertServerRejectsDuplicateID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))
	err := store.InsertServer(ctx, sampleServer("srv-1"))
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindConflict))
}

func TestGetServerUnknownIDIsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetServer(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindNotFound))
}

func TestListServersFiltersByTransportAndStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	httpServer := sampleServer("srv-http")
	stdioServer := sampleServer("srv-stdio")
	stdioServer.Transport = "stdio"
	stdioServer.Command = "./server"
	stdioServer.URL = ""

	require.NoError(t, store.InsertServer(ctx, httpServer))
	require.NoError(t, store.InsertServer(ctx, stdioServer))
	require.NoError(t, store.UpdateStatus(ctx, "srv-stdio", repository.StatusError, false))

	all, err := store.ListServers(ctx, repository.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	httpOnly, err := store.ListServers(ctx, repository.ListFilter{Transport: "http"})
	require.NoError(t, err)
	require.Len(t, httpOnly, 1)
	assert.Equal(t, "srv-http", httpOnly[0].ID)

	activeOnly, err := store.ListServers(ctx, repository.ListFilter{Status: repository.StatusActive})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, "srv-http", activeOnly[0].ID)
}

func TestDeleteServerCascadesCapabilities(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))
	require.NoError(t, store.DeleteServer(ctx, "srv-1"))

	_, err := store.GetServer(ctx, "srv-1")
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindNotFound))
}

func TestDeleteServerUnknownIDIsNotFound(t *testing.T) {
	store := openTestStore(t)
	err := store.DeleteServer(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindNotFound))
}

func TestUpdateStatusOnlyBumpsLastVerifiedWhenVerified(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))
	before, err := store.GetServer(ctx, "srv-1")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, "srv-1", repository.StatusError, false))
	afterFailure, err := store.GetServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusError, afterFailure.Status)
	assert.Equal(t, before.LastVerified, afterFailure.LastVerified)

	require.NoError(t, store.UpdateStatus(ctx, "srv-1", repository.StatusActive, true))
	afterSuccess, err := store.GetServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusActive, afterSuccess.Status)
}

func TestReplaceCapabilitiesSwapsRowsWholesale(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))
	require.NoError(t, store.ReplaceCapabilities(ctx, "srv-1",
		[]mcp.Tool{{Name: "new-tool"}}, nil, nil))

	rec, err := store.GetServer(ctx, "srv-1")
	require.NoError(t, err)
	require.Len(t, rec.Tools, 1)
	assert.Equal(t, "new-tool", rec.Tools[0].Name)
	assert.Empty(t, rec.Resources)
	assert.Empty(t, rec.Prompts)
}

func TestSearchCapabilitiesFindsByKindAndScopesToActiveServers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertServer(ctx, sampleServer("srv-1")))
	inactive := sampleServer("srv-2")
	inactive.Name = "forecasting-inactive"
	require.NoError(t, store.InsertServer(ctx, inactive))
	require.NoError(t, store.UpdateStatus(ctx, "srv-2", repository.StatusInactive, false))

	matches, err := store.SearchCapabilities(ctx, "forecast", "tool", "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "srv-1", matches[0].ServerID)
	require.Len(t, matches[0].MatchedTools, 1)
	assert.Equal(t, "forecast", matches[0].MatchedTools[0].Name)
}

func TestSearchCapabilitiesRejectsOutOfBoundsLimit(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SearchCapabilities(context.Background(), "forecast", "", "", 0)
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindValidation))

	_, err = store.SearchCapabilities(context.Background(), "forecast", "", "", repository.MaxSearchLimit+1)
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindValidation))
}

func TestAgentCardCRUD(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertAgentCard(ctx, repository.NewAgentCard{
		ID:        "card-1",
		Owner:     "team-a",
		Name:      "billing-agent",
		Card:      json.RawMessage(`{"capabilities":{"streaming":true}}`),
		Streaming: true,
	}))

	card, err := store.GetAgentCard(ctx, "card-1")
	require.NoError(t, err)
	assert.Equal(t, "team-a", card.Owner)
	assert.True(t, card.Streaming)
	assert.Nil(t, card.LastHeartbeat)

	require.NoError(t, store.UpdateAgentHeartbeat(ctx, "card-1"))
	card, err = store.GetAgentCard(ctx, "card-1")
	require.NoError(t, err)
	require.NotNil(t, card.LastHeartbeat)

	cards, err := store.ListAgentCards(ctx, repository.AgentCardFilter{Owner: "team-a"})
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	cards, err = store.ListAgentCards(ctx, repository.AgentCardFilter{Owner: "team-b"})
	require.NoError(t, err)
	assert.Empty(t, cards)

	require.NoError(t, store.DeleteAgentCard(ctx, "card-1"))
	_, err = store.GetAgentCard(ctx, "card-1")
	require.Error(t, err)
	assert.True(t, mcperr.Is(err, mcperr.KindNotFound))
}
