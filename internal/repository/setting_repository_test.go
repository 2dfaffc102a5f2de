package repository

import (
	"reflect"
	"testing"
)

func TestSettingListEncoding(t *testing.T) {
	raw, err := encodeList([]string{"-100123", "@examiners"})
	if err != nil {
		t.Fatal(err)
	}
	if raw != `["-100123","@examiners"]` {
		t.Fatalf("encoded = %s", raw)
	}
	got, err := decodeList(raw)
	if err != nil || !reflect.DeepEqual(got, []string{"-100123", "@examiners"}) {
		t.Fatalf("decoded = %v, %v", got, err)
	}
}

func TestSettingEmptyListStaysEmpty(t *testing.T) {
	raw, _ := encodeList(nil)
	if raw != "[]" {
		t.Fatalf("encoded = %s", raw)
	}
	got, err := decodeList(raw)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("decoded = %#v, %v", got, err)
	}
}

func TestSettingDecodesCommaSeparatedValue(t *testing.T) {
	got, err := decodeList(" 1, 2 ,,3 ")
	if err != nil || !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("decoded = %v, %v", got, err)
	}
	if _, err := decodeList(`["1",`); err == nil {
		t.Fatal("malformed JSON accepted")
	}
}
