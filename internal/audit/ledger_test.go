package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fireq/internal/storage"
)

// writeResponse creates a response file next to the journal and returns
// its base name and content
func writeResponse(t *testing.T, dir, name, content string) (string, []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write response: %v", err)
	}
	return name, []byte(content)
}

func TestJournalAppendAndVerify(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}

	name, body := writeResponse(t, dir, "build-pending.json", `{"id": 1}`)
	e1, err := j.Append(Entry{BuildID: "run-1", Context: "deploy/build", State: "pending", Response: name, BodyHash: HashBytes(body)})
	if err != nil {
		t.Fatalf("failed to append entry 1: %v", err)
	}
	e2, err := j.Append(Entry{BuildID: "run-1", Context: "deploy/build", State: "success"})
	if err != nil {
		t.Fatalf("failed to append entry 2: %v", err)
	}

	if e1.Index != 0 || e2.Index != 1 || e1.PrevHash != "" || e2.PrevHash != e1.Hash {
		t.Errorf("entries not linked: %+v %+v", e1, e2)
	}
	if j.LastHash() != e2.Hash {
		t.Errorf("LastHash = %s, want %s", j.LastHash(), e2.Hash)
	}
	if err := j.VerifyChain(); err != nil {
		t.Errorf("chain verification failed: %v", err)
	}
	if err := j.VerifyResponses(); err != nil {
		t.Errorf("response verification failed: %v", err)
	}
}

func TestJournalReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	j, _ := OpenJournal(path)
	for _, state := range []string{"pending", "failure"} {
		if _, err := j.Append(Entry{Context: "deploy/web", State: state}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	reloaded, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reloaded.Entries(); len(got) != 2 || got[1].State != "failure" {
		t.Fatalf("reloaded entries = %+v", got)
	}
	if err := reloaded.VerifyChain(); err != nil {
		t.Errorf("reloaded chain: %v", err)
	}

	e, err := reloaded.Append(Entry{Context: "deploy/web", State: "success"})
	if err != nil {
		t.Fatalf("append after reload: %v", err)
	}
	if e.Index != 2 || e.PrevHash != j.LastHash() {
		t.Errorf("appended after reload = %+v", e)
	}
}

func TestTamperingDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	j, _ := OpenJournal(path)
	j.Append(Entry{Context: "deploy/check-docs", State: "pending"})
	j.Append(Entry{Context: "deploy/check-docs", State: "failure"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	forged := strings.Replace(string(data), `"state":"failure"`, `"state":"success"`, 1)
	if err := os.WriteFile(path, []byte(forged), 0o644); err != nil {
		t.Fatalf("write journal: %v", err)
	}

	tampered, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := tampered.VerifyChain(); err == nil {
		t.Error("expected tampering detection, but chain verified")
	}
}

func TestDroppedEntryDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	j, _ := OpenJournal(path)
	for _, state := range []string{"pending", "pending", "success"} {
		j.Append(Entry{Context: "deploy/web", State: state})
	}

	lines := strings.SplitAfter(strings.TrimSpace(readFile(t, path)), "\n")
	os.WriteFile(path, []byte(lines[0]+lines[2]+"\n"), 0o644)

	tampered, _ := OpenJournal(path)
	if err := tampered.VerifyChain(); err == nil {
		t.Error("expected a missing entry to be detected")
	}
}

func TestResponseTamperingDetection(t *testing.T) {
	dir := t.TempDir()
	j, _ := OpenJournal(filepath.Join(dir, FileName))
	name, body := writeResponse(t, dir, "web-success.json", `{"state": "success"}`)
	j.Append(Entry{Context: "deploy/web", State: "success", Response: name, BodyHash: HashBytes(body)})

	writeResponse(t, dir, name, `{"state": "failure"}`)
	if err := j.VerifyResponses(); err == nil {
		t.Error("expected edited response to be detected")
	}

	os.Remove(filepath.Join(dir, name))
	if err := j.VerifyResponses(); err == nil {
		t.Error("expected missing response to be detected")
	}
}

func TestJournalsShareOneJournalPerBuild(t *testing.T) {
	ls := storage.NewLogStorage(t.TempDir())
	js := NewJournals(ls)
	logPath := "push/sd-a/0123456789/20260101-000000/"

	a, err := js.Get(logPath)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := js.Get(logPath)
	if a != b {
		t.Error("same build got two journals")
	}

	if err := js.Append(logPath, Entry{Context: "deploy/build", State: "pending"}, []byte("{}")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := a.Entries(); len(got) != 1 || got[0].BodyHash != HashBytes([]byte("{}")) {
		t.Errorf("entries = %+v", got)
	}

	js.Release(logPath)
	c, _ := js.Get(logPath)
	if c == a || len(c.Entries()) != 1 {
		t.Errorf("released journal was not reloaded from disk")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
