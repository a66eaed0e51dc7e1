package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deusflow/newsbrief/internal/news"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "energy_news.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func rec(url, date string) news.Record {
	return news.Record{
		Topic:       "원전",
		Keywords:    "SMR OR 원전",
		Title:       "title " + url,
		Press:       "에너지신문",
		Date:        date,
		OriginalURL: url,
		Content:     "본문 <b>" + url + "</b>",
	}
}

func TestSaveArticlesInsertIfNew(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	saved, dups, err := s.SaveArticles(ctx, []news.Record{rec("https://a.kr/1", "2025-10-13 09:00"), rec("https://a.kr/2", "2025-10-13 10:00")})
	if err != nil {
		t.Fatal(err)
	}
	if saved != 2 || dups != 0 {
		t.Errorf("first save = (%d, %d), want (2, 0)", saved, dups)
	}

	saved, dups, err = s.SaveArticles(ctx, []news.Record{rec("https://a.kr/2", "x"), rec("https://a.kr/3", "2025-10-14 08:00")})
	if err != nil {
		t.Fatal(err)
	}
	if saved != 1 || dups != 1 {
		t.Errorf("second save = (%d, %d), want (1, 1)", saved, dups)
	}

	urls, err := s.SeenURLs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 3 {
		t.Errorf("SeenURLs() = %v", urls)
	}
}

func TestSaveArticlesEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	saved, dups, err := s.SaveArticles(context.Background(), nil)
	if err != nil || saved != 0 || dups != 0 {
		t.Errorf("SaveArticles(nil) = (%d, %d, %v)", saved, dups, err)
	}
}

func TestExportJSON(t *testing.T) {
	s, dbPath := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.SaveArticles(ctx, []news.Record{
		rec("https://a.kr/old", "2025-10-12 09:00"),
		rec("https://a.kr/new", "2025-10-13 09:00"),
		rec("https://a.kr/new-later-id", "2025-10-13 09:00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	out := ExportPath(dbPath)
	n, err := s.ExportJSON(ctx, out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("exported %d, want 3", n)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "본문 <b>") {
		t.Errorf("export escaped non-ASCII or HTML: %s", data)
	}
	var got []news.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	wantOrder := []string{"https://a.kr/new-later-id", "https://a.kr/new", "https://a.kr/old"}
	for i, w := range wantOrder {
		if got[i].OriginalURL != w {
			t.Errorf("export[%d] = %s, want %s", i, got[i].OriginalURL, w)
		}
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestExportEmptyStoreWritesArray(t *testing.T) {
	s, dbPath := openTestStore(t)
	out := ExportPath(dbPath)
	if _, err := s.ExportJSON(context.Background(), out); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(out)
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("empty export = %q", data)
	}
}

func TestExportPath(t *testing.T) {
	tests := map[string]string{
		"energy_news.db":  "energy_news.json",
		"data/ai.db":      "data/ai.json",
		"plain":           "plain.json",
		"weird.db.backup": "weird.db.backup.json",
	}
	for in, want := range tests {
		if got := ExportPath(in); got != want {
			t.Errorf("ExportPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("VALUES (?, ?, ?)"); got != "VALUES ($1, $2, $3)" {
		t.Errorf("rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("VALUES (?)"); got != "VALUES (?)" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
