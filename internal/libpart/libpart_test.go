package libpart

import (
	"strings"
	"testing"

	"github.com/byewind1/gdl-agent/internal/gdl"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Symbol Name="Bookshelf">
  <Script_1D><![CDATA[A = 1.2]]></Script_1D>
  <Script_2D><![CDATA[RECT2 0, 0, A, B]]></Script_2D>
  <Script_3D><![CDATA[BLOCK A, B, ZZYZX
END]]></Script_3D>
  <Script_VL><![CDATA[VALUES "A" RANGE (0.1, 3.0)]]></Script_VL>
  <Script_UI></Script_UI>
  <Script_PR></Script_PR>
</Symbol>
`

func TestParseRoundTrip(t *testing.T) {
	sym, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if sym.Name != "Bookshelf" {
		t.Errorf("expected name Bookshelf, got %q", sym.Name)
	}
	if !strings.Contains(sym.Script(Role3D), "BLOCK A, B, ZZYZX") {
		t.Errorf("unexpected 3D script: %q", sym.Script(Role3D))
	}

	sym.SetScript(Role3D, "CYLIND H, R\nEND")

	out, err := sym.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse failed: %v", err)
	}
	if back.Script(Role3D) != "CYLIND H, R\nEND" {
		t.Errorf("3D script did not round-trip, got %q", back.Script(Role3D))
	}
	if back.Script(RolePlan) != sym.Script(RolePlan) {
		t.Errorf("untouched script changed across round-trip")
	}
}

func TestValidateScripts(t *testing.T) {
	sym, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if defects := sym.ValidateScripts(); len(defects) != 0 {
		t.Fatalf("expected clean document, got %v", defects)
	}

	sym.SetScript(Role3D, "IF A THEN\nBLOCK A, B, C\nEND")
	defects := sym.ValidateScripts()
	if len(defects) != 1 {
		t.Fatalf("expected one defect, got %v", defects)
	}
	if defects[0].Kind != gdl.DefectBlockBalance {
		t.Errorf("expected block-balance, got %s", defects[0].Kind)
	}
	if !strings.Contains(defects[0].Detail, "3d script") {
		t.Errorf("expected the defect to name the script role, got %q", defects[0].Detail)
	}
}

func TestMacros(t *testing.T) {
	sym := &Symbol{}
	sym.SetScript(Role3D, "CALL \"leg\"\nCALL \"shelf\"\nCALL \"leg\"\nEND")

	got := sym.Macros()
	if len(got) != 2 || got[0] != "leg" || got[1] != "shelf" {
		t.Errorf("expected [leg shelf], got %v", got)
	}
}

func TestExtractXML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "fenced block",
			in:   "Here you go:\n```xml\n" + sampleDoc + "```\nDone.",
			want: "<?xml",
			ok:   true,
		},
		{
			name: "bare document",
			in:   sampleDoc,
			want: "<?xml",
			ok:   true,
		},
		{
			name: "symbol without declaration",
			in:   "intro text <Symbol Name=\"X\"><Script_3D>END</Script_3D></Symbol> outro",
			want: "<?xml",
			ok:   true,
		},
		{
			name: "no document",
			in:   "Sorry, I cannot help with that.",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractXML(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !strings.HasPrefix(got, tt.want) {
				t.Errorf("extracted %q, want prefix %q", got[:min(40, len(got))], tt.want)
			}
		})
	}
}

func TestIdenticalAndDiff(t *testing.T) {
	if !Identical("a\nb\n", "a\r\nb") {
		t.Error("expected line-ending differences to be ignored")
	}
	if Identical("a\nb", "a\nc") {
		t.Error("expected different content to differ")
	}

	d := Diff("one\ntwo\nthree", "one\nTWO\nthree")
	if !strings.Contains(d, "- two") || !strings.Contains(d, "+ TWO") {
		t.Errorf("unexpected diff output:\n%s", d)
	}
	if Diff("same", "same") != "" {
		t.Error("expected empty diff for identical content")
	}
}
