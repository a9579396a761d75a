package replay

import (
	"reflect"
	"testing"
)

func TestBatches(t *testing.T) {
	cases := []struct {
		actions int
		size    uint64
		want    []Range
	}{
		{6, 2, []Range{{0, 1}, {2, 3}, {4, 5}}},
		{7, 3, []Range{{0, 2}, {3, 5}, {6, 6}}},
		{1, 10, []Range{{0, 0}}},
		{3, 1 << 63, []Range{{0, 2}}},
	}
	for _, tc := range cases {
		got, err := Batches(tc.actions, tc.size)
		if err != nil {
			t.Fatalf("batches(%d, %d): %v", tc.actions, tc.size, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("batches(%d, %d) = %+v, want %+v", tc.actions, tc.size, got, tc.want)
		}
		covered := 0
		for _, r := range got {
			covered += r.Len()
		}
		if covered != tc.actions {
			t.Fatalf("batches(%d, %d) cover %d actions", tc.actions, tc.size, covered)
		}
	}
}

func TestBatchesInvalid(t *testing.T) {
	if _, err := Batches(0, 1); err == nil {
		t.Fatalf("expected error for empty scenario")
	}
	if _, err := Batches(10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
