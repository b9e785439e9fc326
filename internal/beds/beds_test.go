package beds

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		bedID   int32
		bedDesc string
		want    CareUnit
	}{
		{name: "icu id", bedID: 4, bedDesc: "ICU", want: CareUnitICU},
		{name: "sicu id", bedID: 15, bedDesc: "SICU", want: CareUnitSICU},
		{name: "icu id beats contrary desc", bedID: 4, bedDesc: "Surgical", want: CareUnitICU},
		{name: "sicu id beats contrary desc", bedID: 15, bedDesc: "General", want: CareUnitSICU},
		{name: "desc fallback icu", bedID: 7, bedDesc: "ICU", want: CareUnitICU},
		{name: "desc fallback sicu", bedID: 7, bedDesc: "SICU", want: CareUnitSICU},
		{name: "desc fallback trims and folds case", bedID: 7, bedDesc: " sicu ", want: CareUnitSICU},
		{name: "unknown id and desc", bedID: 7, bedDesc: "Burn Care", want: CareUnitOther},
		{name: "empty desc", bedID: 99, bedDesc: "", want: CareUnitOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.bedID, tt.bedDesc); got != tt.want {
				t.Errorf("Classify(%d, %q) = %q, want %q", tt.bedID, tt.bedDesc, got, tt.want)
			}
		})
	}
}
