package picodb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgestore-io/picodb/document"
	"github.com/edgestore-io/picodb/wal"
)

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// TestScenarioRangeAndEqualityQueries covers spec.md §8 scenario 1.
func TestScenarioRangeAndEqualityQueries(t *testing.T) {
	db := openTestDB(t)
	products, err := db.Collection("products")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	for _, field := range []string{"price", "category"} {
		if err := products.CreateIndex(field); err != nil {
			t.Fatalf("CreateIndex %s: %v", field, err)
		}
	}

	if _, err := products.CreateDocument("p1", document.MapValue(map[string]document.Value{
		"price":    mustDouble(t, 1299.99),
		"category": document.StringValue("Electronics"),
	})); err != nil {
		t.Fatalf("CreateDocument p1: %v", err)
	}
	if _, err := products.CreateDocument("p2", document.MapValue(map[string]document.Value{
		"price":    mustDouble(t, 49.99),
		"category": document.StringValue("Books"),
	})); err != nil {
		t.Fatalf("CreateDocument p2: %v", err)
	}

	ids, err := products.Find([]byte(`{"$gt":{"price":100.0}}`))
	if err != nil {
		t.Fatalf("Find $gt: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("expected [p1], got %+v", ids)
	}

	ids, err = products.Find([]byte(`{"$eq":{"category":"Books"}}`))
	if err != nil {
		t.Fatalf("Find $eq: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p2" {
		t.Fatalf("expected [p2], got %+v", ids)
	}
}

// TestScenarioUpdateShiftsRangeMembership covers spec.md §8 scenario 2.
func TestScenarioUpdateShiftsRangeMembership(t *testing.T) {
	db := openTestDB(t)
	products, _ := db.Collection("products")
	products.CreateIndex("price")
	products.CreateIndex("category")
	products.CreateDocument("p1", document.MapValue(map[string]document.Value{
		"price": mustDouble(t, 1299.99), "category": document.StringValue("Electronics"),
	}))
	products.CreateDocument("p2", document.MapValue(map[string]document.Value{
		"price": mustDouble(t, 49.99), "category": document.StringValue("Books"),
	}))

	update, err := document.ParseUpdateJSON([]byte(`{"$set":{"price":99.0}}`))
	if err != nil {
		t.Fatalf("ParseUpdateJSON: %v", err)
	}
	if err := products.UpdateDocument("p1", update, false); err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}

	ids, err := products.Find([]byte(`{"$lt":{"price":100.0}}`))
	if err != nil {
		t.Fatalf("Find $lt: %v", err)
	}
	if !containsID(ids, "p1") || !containsID(ids, "p2") {
		t.Fatalf("expected both p1 and p2 under 100, got %+v", ids)
	}
}

// TestScenarioOrderByAscDesc covers spec.md §8 scenario 3.
func TestScenarioOrderByAscDesc(t *testing.T) {
	db := openTestDB(t)
	products, _ := db.Collection("products")
	products.CreateIndex("price")
	products.CreateDocument("a", document.MapValue(map[string]document.Value{"price": document.IntValue(10)}))
	products.CreateDocument("b", document.MapValue(map[string]document.Value{"price": document.IntValue(20)}))
	products.CreateDocument("c", document.MapValue(map[string]document.Value{"price": document.IntValue(30)}))

	ids, err := products.Find([]byte(`{"$orderBy":{"price":"asc"}}`))
	if err != nil {
		t.Fatalf("Find asc: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("expected [a b c], got %+v", ids)
	}

	ids, err = products.Find([]byte(`{"$orderBy":{"price":"desc"}}`))
	if err != nil {
		t.Fatalf("Find desc: %v", err)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Fatalf("expected [c b a], got %+v", ids)
	}
}

// TestScenarioWALTailerObservesPutAndDelete covers spec.md §8 scenario 4.
func TestScenarioWALTailerObservesPutAndDelete(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal")
	db, err := Open(filepath.Join(t.TempDir(), "test_db"), Options{JournalPath: journalPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// Collection creates the "products" document keyspace, which journals
	// a CREATE_CF entry at sequence 1 (spec.md §4.8: keyspace-lifecycle
	// entries are always surfaced, even though this keyspace isn't an
	// index keyspace and even though Tail below replays from 0).
	products, err := db.Collection("products")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	var mu sync.Mutex
	var ops []wal.Op
	var keys []string
	var values []string
	if err := db.Tail(0, 5*time.Millisecond, func(entry wal.Entry, value string) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, entry.Op)
		keys = append(keys, entry.Key)
		values = append(values, value)
	}); err != nil {
		t.Fatalf("Tail: %v", err)
	}

	if _, err := products.CreateDocument("x", document.MapValue(map[string]document.Value{"a": document.IntValue(1)})); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ops) >= 2
	})

	if err := products.DeleteDocument("x"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ops) >= 3
	})

	mu.Lock()
	defer mu.Unlock()
	if len(ops) != 3 || ops[0] != wal.CreateKeyspace || ops[1] != wal.Put || ops[2] != wal.Delete {
		t.Fatalf("expected [CreateKeyspace Put Delete], got %+v", ops)
	}
	if keys[1] != "x" || keys[2] != "x" {
		t.Fatalf("expected key=x on the PUT and DELETE events, got %+v", keys)
	}
	if values[1] == "" {
		t.Fatalf("expected decoded document value on PUT")
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(values[1]), &decoded); err != nil {
		t.Fatalf("unmarshal put value: %v", err)
	}
	if decoded["a"] != float64(1) {
		t.Fatalf("expected a:1 in put value, got %+v", decoded)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

// TestScenarioExportImportRoundTrip covers spec.md §8 scenario 5.
func TestScenarioExportImportRoundTrip(t *testing.T) {
	db := openTestDB(t)
	products, _ := db.Collection("products")
	products.CreateDocument("p1", document.MapValue(map[string]document.Value{"name": document.StringValue("widget")}))
	products.CreateDocument("p2", document.MapValue(map[string]document.Value{"name": document.StringValue("gadget")}))

	dir := t.TempDir()
	if err := products.ExportToJSONAsync(dir); err != nil {
		t.Fatalf("ExportToJSONAsync: %v", err)
	}
	if err := products.WaitExport(context.Background()); err != nil {
		t.Fatalf("WaitExport: %v", err)
	}

	exportPath := filepath.Join(dir, "products.json")
	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "products.dump")); !os.IsNotExist(err) {
		t.Fatalf("expected dump file to be renamed away")
	}

	if err := db.DropCollection("products"); err != nil {
		t.Fatalf("DropCollection: %v", err)
	}
	restored, err := db.Collection("products")
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}

	summary, err := restored.ImportFromJSONFile(exportPath)
	if err != nil {
		t.Fatalf("ImportFromJSONFile: %v", err)
	}
	if summary.Succeeded != 2 || summary.Failed != 0 {
		t.Fatalf("expected 2 succeeded 0 failed, got %+v", summary)
	}

	env1, err := restored.ReadDocument("p1")
	if err != nil {
		t.Fatalf("ReadDocument p1: %v", err)
	}
	namev, _ := env1.Data.Field("name")
	if namev.String() != "widget" {
		t.Fatalf("expected name=widget, got %+v", env1.Data)
	}
}

// TestScenarioPushThenPull covers spec.md §8 scenario 6.
func TestScenarioPushThenPull(t *testing.T) {
	db := openTestDB(t)
	col, _ := db.Collection("widgets")

	push, err := document.ParseUpdateJSON([]byte(`{"$push":{"tags":"new"}}`))
	if err != nil {
		t.Fatalf("ParseUpdateJSON push: %v", err)
	}
	if err := col.UpdateDocument("w1", push, true); err != nil {
		t.Fatalf("UpdateDocument push upsert: %v", err)
	}

	env, err := col.ReadDocument("w1")
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	tagsv, ok := env.Data.Field("tags")
	if !ok || len(tagsv.List()) != 1 || tagsv.List()[0].String() != "new" {
		t.Fatalf("expected tags=[new] after push, got %+v", env.Data)
	}

	pull, err := document.ParseUpdateJSON([]byte(`{"$pull":{"tags":"new"}}`))
	if err != nil {
		t.Fatalf("ParseUpdateJSON pull: %v", err)
	}
	if err := col.UpdateDocument("w1", pull, false); err != nil {
		t.Fatalf("UpdateDocument pull: %v", err)
	}

	env, err = col.ReadDocument("w1")
	if err != nil {
		t.Fatalf("ReadDocument after pull: %v", err)
	}
	tagsv, ok = env.Data.Field("tags")
	if !ok || len(tagsv.List()) != 0 {
		t.Fatalf("expected tags=[] after pull, got %+v", env.Data)
	}
}

func TestCursorTake(t *testing.T) {
	db := openTestDB(t)
	col, _ := db.Collection("widgets")
	for i := 0; i < 3; i++ {
		col.CreateDocument("", document.MapValue(map[string]document.Value{"n": document.IntValue(int64(i))}))
	}

	cur, err := col.Cursor()
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	docs, err := cur.Take(0)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}
}
