package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/cache"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model/modeltest"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/pipeline"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/store"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/tags"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/task"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	client *modeltest.Client
	store  *store.Memory
	ts     *httptest.Server
	owner  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	var client = modeltest.New()
	var st = store.NewMemory()

	var smart = &pipeline.SmartNote{
		Client:           client,
		Store:            st,
		Tags:             &tags.Generator{Client: client, Store: st, MaxPerContent: 5, MaxExisting: 200},
		Cache:            cache.New(128, time.Hour),
		MaxContentLength: 2000,
		MaxImageBytes:    10 << 20,
	}
	var multi = &workflow.MultiSummary{
		Client:              client,
		Cache:               cache.New(128, time.Hour),
		MinNotesThreshold:   3,
		ConfidenceThreshold: 0.6,
		FanoutLimit:         4,
		MaxNotes:            64,
		MaxContentLength:    2000,
	}

	var srv = &Server{
		Registry:      task.NewRegistry(time.Hour),
		Runner:        &task.Runner{Gate: task.NewGate(4, time.Second), Timeout: 10 * time.Second},
		Store:         st,
		SmartNote:     smart.Process,
		MultiSummary:  multi.Process,
		MaxImageBytes: 10 << 20,
	}

	var ts = httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return &fixture{client: client, store: st, ts: ts, owner: uuid.New()}
}

func (f *fixture) do(t *testing.T, method, path string, contentType string, body []byte) (*http.Response, map[string]interface{}) {
	t.Helper()

	var req, err = http.NewRequest(method, f.ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(ownerHeader, f.owner.String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func (f *fixture) submitText(t *testing.T, title, text string) string {
	t.Helper()
	var body, _ = json.Marshal(map[string]string{"title": title, "text": text})
	var resp, decoded = f.do(t, "POST", "/api/v1/notes/smart-note", "application/json", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "pending", decoded["status"])
	return decoded["task_id"].(string)
}

// awaitResult polls the result endpoint until the task is terminal.
func (f *fixture) awaitResult(t *testing.T, taskID string) map[string]interface{} {
	t.Helper()
	var deadline = time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var resp, decoded = f.do(t, "GET", "/api/v1/tasks/"+taskID+"/result", "", nil)
		if resp.StatusCode == http.StatusOK {
			return decoded
		}
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state")
	return nil
}

func TestSubmitTextNote(t *testing.T) {
	var f = newFixture(t)
	var taskID = f.submitText(t, "笔记", "梯度下降是一种优化算法。")

	var result = f.awaitResult(t, taskID)
	require.Equal(t, "completed", result["status"])

	var payload = result["result"].(map[string]interface{})
	require.Equal(t, "梯度下降是一种优化算法。", payload["corrected_text"])
	require.NotZero(t, payload["content_id"])
	require.NotEmpty(t, payload["tags"])
}

func TestSubmitImageNote(t *testing.T) {
	var f = newFixture(t)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 1, 1))))

	var body bytes.Buffer
	var mw = multipart.NewWriter(&body)
	var fw, err = mw.CreateFormFile("image", "note.png")
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "手写笔记"))
	require.NoError(t, mw.Close())

	var resp, decoded = f.do(t, "POST", "/api/v1/notes/smart-note", mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result = f.awaitResult(t, decoded["task_id"].(string))
	require.Equal(t, "completed", result["status"])
	var payload = result["result"].(map[string]interface{})
	require.Contains(t, payload["ocr_text"], "recognized text")
}

func TestSubmitMultiSummary(t *testing.T) {
	var f = newFixture(t)
	var body, _ = json.Marshal(map[string]interface{}{
		"notes": []map[string]string{
			{"title": "一", "content": "第一条内容"},
			{"title": "二", "content": "第二条内容"},
		},
	})
	var resp, decoded = f.do(t, "POST", "/api/v1/notes/multi-summary", "application/json", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result = f.awaitResult(t, decoded["task_id"].(string))
	require.Equal(t, "completed", result["status"])
	var payload = result["result"].(map[string]interface{})
	require.Equal(t, "single", payload["processing_method"])
}

func TestResultConflictWhileRunning(t *testing.T) {
	var f = newFixture(t)
	var release = make(chan struct{})
	var started = make(chan struct{})
	f.client.CorrectFunc = func(ctx context.Context, text string) (string, error) {
		close(started)
		select {
		case <-release:
			return text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	var taskID = f.submitText(t, "t", "内容")
	<-started

	var resp, _ = f.do(t, "GET", "/api/v1/tasks/"+taskID+"/result", "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	close(release)
	f.awaitResult(t, taskID)
}

func TestCancelTask(t *testing.T) {
	var f = newFixture(t)
	var started = make(chan struct{})
	f.client.CorrectFunc = func(ctx context.Context, _ string) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	var taskID = f.submitText(t, "t", "内容")
	<-started

	var resp, _ = f.do(t, "DELETE", "/api/v1/tasks/"+taskID, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var result = f.awaitResult(t, taskID)
	require.Equal(t, "cancelled", result["status"])
	require.Equal(t, "cancelled", result["error_class"])

	// Cancelling a terminal task conflicts.
	resp, _ = f.do(t, "DELETE", "/api/v1/tasks/"+taskID, "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown tasks are not found.
	resp, _ = f.do(t, "DELETE", "/api/v1/tasks/"+uuid.NewString(), "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMissingOwnerHeader(t *testing.T) {
	var f = newFixture(t)
	var resp, err = http.Post(f.ts.URL+"/api/v1/notes/smart-note", "application/json",
		strings.NewReader(`{"text":"内容"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTasksAreOwnerScoped(t *testing.T) {
	var f = newFixture(t)
	var taskID = f.submitText(t, "t", "内容")
	f.awaitResult(t, taskID)

	// Another user cannot see the task.
	f.owner = uuid.New()
	var resp, _ = f.do(t, "GET", "/api/v1/tasks/"+taskID, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var listResp, decoded = f.do(t, "GET", "/api/v1/tasks", "", nil)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	require.Empty(t, decoded["tasks"])
}

func TestListTasks(t *testing.T) {
	var f = newFixture(t)
	var first = f.submitText(t, "一", "第一条内容")
	f.awaitResult(t, first)
	var second = f.submitText(t, "二", "第二条内容")
	f.awaitResult(t, second)

	var resp, decoded = f.do(t, "GET", "/api/v1/tasks", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed = decoded["tasks"].([]interface{})
	require.Len(t, listed, 2)
	// Newest first.
	require.Equal(t, second, listed[0].(map[string]interface{})["task_id"])
	require.Equal(t, first, listed[1].(map[string]interface{})["task_id"])

	// Status and kind query parameters narrow the listing.
	resp, decoded = f.do(t, "GET", "/api/v1/tasks?status=completed&kind=smart_note", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decoded["tasks"].([]interface{}), 2)

	resp, decoded = f.do(t, "GET", "/api/v1/tasks?status=failed", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, decoded["tasks"])
}

func TestSnapshotElidesLargeIntermediates(t *testing.T) {
	var f = newFixture(t)
	f.client.CorrectFunc = func(_ context.Context, text string) (string, error) {
		return strings.Repeat("长", 100_000), nil
	}

	var taskID = f.submitText(t, "t", "内容")
	f.awaitResult(t, taskID)

	var resp, decoded = f.do(t, "GET", "/api/v1/tasks/"+taskID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var intermediates = decoded["intermediates"].(map[string]interface{})
	var corrected = intermediates["corrected_text"].(map[string]interface{})
	require.Equal(t, true, corrected["elided"])
	require.Greater(t, corrected["bytes"].(float64), float64(maxSnapshotIntermediate))
}

func TestStreamDeliversEventsUntilTerminal(t *testing.T) {
	var f = newFixture(t)
	var taskID = f.submitText(t, "t", "流式内容")

	var req, err = http.NewRequest("GET", f.ts.URL+"/api/v1/tasks/"+taskID+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set(ownerHeader, f.owner.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var types []string
	var scanner = bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		var line = scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev struct {
			Type  string `json:"type"`
			Stage string `json:"stage"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		types = append(types, ev.Type)
	}
	// The stream closed itself after the terminal event.
	require.NotEmpty(t, types)
	require.Equal(t, "complete", types[len(types)-1])
	for _, typ := range types[:len(types)-1] {
		require.NotEqual(t, "complete", typ)
		require.NotEqual(t, "error", typ)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	var f = newFixture(t)

	var resp, decoded = f.do(t, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decoded["status"])

	httpResp, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
}

func TestPublishContent(t *testing.T) {
	var f = newFixture(t)
	var taskID = f.submitText(t, "笔记", "可分享的内容")
	var result = f.awaitResult(t, taskID)
	var contentID = int64(result["result"].(map[string]interface{})["content_id"].(float64))

	var body, _ = json.Marshal(map[string]string{"title": "公开标题", "description": "描述"})
	var resp, _ = f.do(t, "POST", fmt.Sprintf("/api/v1/contents/%d/publish", contentID), "application/json", body)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var content, found = f.store.Content(contentID)
	require.True(t, found)
	require.True(t, content.Public)
	require.Equal(t, "公开标题", content.PublicTitle)

	// Unknown contents are not found.
	resp, _ = f.do(t, "POST", "/api/v1/contents/99999/publish", "application/json", body)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A title is required.
	var missing, _ = json.Marshal(map[string]string{"description": "d"})
	resp, _ = f.do(t, "POST", fmt.Sprintf("/api/v1/contents/%d/publish", contentID), "application/json", missing)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidInputSurfacesThroughTask(t *testing.T) {
	var f = newFixture(t)
	var taskID = f.submitText(t, "t", "   ")

	var result = f.awaitResult(t, taskID)
	require.Equal(t, "failed", result["status"])
	require.Equal(t, "invalid_input", result["error_class"])
}
