package solr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordedRequest struct {
	path string
	body []byte
}

func newTestServer(t *testing.T, status int) (*Client, *[]recordedRequest) {
	t.Helper()

	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{path: r.URL.Path, body: body})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	return NewClient(server.URL + "/solr/bibdata"), &requests
}

func TestAdd(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	docs := []Document{{"id": "b1234567", "title": "Moby Dick"}}
	if err := client.Add(context.Background(), docs); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	req := (*requests)[0]
	if req.path != "/solr/bibdata/update" {
		t.Errorf("unexpected path: %s", req.path)
	}

	var sent []map[string]interface{}
	if err := json.Unmarshal(req.body, &sent); err != nil {
		t.Fatalf("body is not a JSON document array: %v", err)
	}
	if sent[0]["id"] != "b1234567" {
		t.Errorf("unexpected document: %v", sent[0])
	}
}

func TestAddEmptyBatchIsNoop(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	if err := client.Add(context.Background(), nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(*requests) != 0 {
		t.Errorf("empty batch should not hit solr")
	}
}

func TestDeleteByID(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	if err := client.DeleteByID(context.Background(), []string{"b1", "b2"}); err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal((*requests)[0].body, &sent); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	ids, ok := sent["delete"].([]interface{})
	if !ok || len(ids) != 2 {
		t.Errorf("unexpected delete payload: %v", sent)
	}
}

func TestDeleteByQuery(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	if err := client.DeleteByQuery(context.Background(), "type:location"); err != nil {
		t.Fatalf("DeleteByQuery failed: %v", err)
	}

	var sent map[string]map[string]string
	if err := json.Unmarshal((*requests)[0].body, &sent); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if sent["delete"]["query"] != "type:location" {
		t.Errorf("unexpected delete payload: %v", sent)
	}
}

func TestCommitAndOptimize(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	if err := client.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := client.Optimize(context.Background()); err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if len(*requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(*requests))
	}
}

func TestUpdateErrorIncludesStatus(t *testing.T) {
	client, _ := newTestServer(t, http.StatusBadRequest)

	err := client.Commit(context.Background())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestPing(t *testing.T) {
	client, requests := newTestServer(t, http.StatusOK)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if (*requests)[0].path != "/solr/bibdata/admin/ping" {
		t.Errorf("unexpected ping path: %s", (*requests)[0].path)
	}
}
