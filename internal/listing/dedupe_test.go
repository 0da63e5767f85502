package listing

import "testing"

func TestDedupeFoldsExactDuplicates(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	c := sampleRecord()
	c[FieldPrice] = 9000 // different price: distinct listing key

	out := Dedupe([]Record{a, b, c})
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	count, ok := out[0].IntField(FieldDuplicateCount)
	if !ok || count != 2 {
		t.Fatalf("expected duplicate_count 2 on representative, got %d (ok=%v)", count, ok)
	}
	if out[0].StringField(FieldURL) != a.StringField(FieldURL) {
		t.Fatal("representative should be the first-seen record")
	}
}

func TestDedupePreservesOrder(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()
	b[FieldBuildingName] = "コーポ青葉"
	c := sampleRecord()
	c[FieldBuildingName] = "メゾン桜"

	out := Dedupe([]Record{a, b, c})
	if len(out) != 3 {
		t.Fatalf("expected 3 records, got %d", len(out))
	}
	if out[1].StringField(FieldBuildingName) != "コーポ青葉" {
		t.Fatal("input order not preserved")
	}
}

func TestDedupeIdempotent(t *testing.T) {
	a := sampleRecord()
	b := sampleRecord()

	once := Dedupe([]Record{a, b})
	twice := Dedupe(once)

	if len(once) != 1 || len(twice) != 1 {
		t.Fatalf("expected single record, got %d then %d", len(once), len(twice))
	}
	onceCount, _ := once[0].IntField(FieldDuplicateCount)
	twiceCount, _ := twice[0].IntField(FieldDuplicateCount)
	if onceCount != 2 || twiceCount != 2 {
		t.Fatalf("duplicate_count changed across runs: %d then %d", onceCount, twiceCount)
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}
