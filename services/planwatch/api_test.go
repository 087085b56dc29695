package planwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"launtel-backend/lib/planstore"
	"launtel-backend/lib/planstore/db"
	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/sqliteutil"
)

func newTestApi(t *testing.T, c *Coordinator, accessToken string) (*httptest.Server, *planstore.Store) {
	sqlite, err := sqliteutil.OpenDB(db.Schema, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	store := planstore.NewStore(sqlite)

	server := httptest.NewServer(NewRouter(c, &store, accessToken))
	t.Cleanup(server.Close)
	return server, &store
}

func TestApiSnapshot(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})
	server, _ := newTestApi(t, c, "")

	res, err := http.Get(server.URL + "/snapshot")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	res, err = http.Get(server.URL + "/snapshot")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var snap PollSnapshot
	require.NoError(t, json.NewDecoder(res.Body).Decode(&snap))
	require.Equal(t, "Home Fibre", snap.Title)
	require.Equal(t, "Fibre 250/100 Mbps - $4.40/day", snap.CurrentLabel)
}

func TestApiAccessToken(t *testing.T) {
	c := NewCoordinator(&fakePortal{}, Options{ServiceID: 123456})
	server, _ := newTestApi(t, c, "sekret")

	res, err := http.Get(server.URL + "/snapshot")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sekret")
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestApiChangeByLabel(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})
	server, _ := newTestApi(t, c, "")

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	body, err := json.Marshal(changeRequest{Label: "Fibre 100/40 Mbps - $3.30/day"})
	require.NoError(t, err)
	res, err := http.Post(server.URL+"/change", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, portal.changeCalls, 1)
	require.Equal(t, 1100, portal.changeCalls[0].Psid)
}

func TestApiChangeConflictWhileInProgress(t *testing.T) {
	svc := activeService()
	svc.ChangeInProgress = true
	portal := &fakePortal{services: []launtel.Service{svc}}
	c := NewCoordinator(portal, Options{ServiceID: 123456})
	server, _ := newTestApi(t, c, "")

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	body, err := json.Marshal(changeRequest{Psid: 1100})
	require.NoError(t, err)
	res, err := http.Post(server.URL+"/change", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusConflict, res.StatusCode)
	require.Empty(t, portal.changeCalls)
}

func TestApiHistory(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})
	server, store := newTestApi(t, c, "")
	c.opts.Store = store

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	res, err := http.Get(server.URL + "/history")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var records []planstore.Record
	require.NoError(t, json.NewDecoder(res.Body).Decode(&records))
	require.Len(t, records, 1)
	require.Equal(t, "Fibre 250/100 Mbps - $4.40/day", records[0].CurrentLabel)
}
