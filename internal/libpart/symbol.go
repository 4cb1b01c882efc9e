// Package libpart models the GDL library-part XML document: a <Symbol> root
// carrying one script body per named role. The agent only reads and replaces
// the script bodies; all other fields pass through untouched.
package libpart

import (
	"encoding/xml"
	"fmt"

	"github.com/byewind1/gdl-agent/internal/gdl"
)

// ScriptRole names one of the embedded script bodies.
type ScriptRole string

const (
	RoleMaster     ScriptRole = "master" // 1D validation/master script
	RolePlan       ScriptRole = "2d"     // plan-view script
	Role3D         ScriptRole = "3d"     // 3D geometry script
	RoleParam      ScriptRole = "param"  // parameter-range script
	RoleUI         ScriptRole = "ui"
	RoleProperties ScriptRole = "properties"
)

// Roles lists the script roles in document order.
var Roles = []ScriptRole{RoleMaster, RolePlan, Role3D, RoleParam, RoleUI, RoleProperties}

// Script is a single script body. The text is stored as CDATA so GDL
// operators like < survive round-tripping.
type Script struct {
	Text string `xml:",cdata"`
}

// Symbol is the library-part document.
type Symbol struct {
	XMLName    xml.Name `xml:"Symbol"`
	Name       string   `xml:"Name,attr,omitempty"`
	Version    string   `xml:"Version,attr,omitempty"`
	Master     Script   `xml:"Script_1D"`
	Plan       Script   `xml:"Script_2D"`
	Geometry   Script   `xml:"Script_3D"`
	Param      Script   `xml:"Script_VL"`
	UI         Script   `xml:"Script_UI"`
	Properties Script   `xml:"Script_PR"`
}

// Parse decodes a library-part document.
func Parse(data []byte) (*Symbol, error) {
	var sym Symbol
	if err := xml.Unmarshal(data, &sym); err != nil {
		return nil, fmt.Errorf("parsing symbol document: %w", err)
	}
	return &sym, nil
}

// Encode serializes the document with the XML declaration.
func (s *Symbol) Encode() ([]byte, error) {
	body, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding symbol document: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Script returns the body for the given role.
func (s *Symbol) Script(role ScriptRole) string {
	switch role {
	case RoleMaster:
		return s.Master.Text
	case RolePlan:
		return s.Plan.Text
	case Role3D:
		return s.Geometry.Text
	case RoleParam:
		return s.Param.Text
	case RoleUI:
		return s.UI.Text
	case RoleProperties:
		return s.Properties.Text
	}
	return ""
}

// SetScript replaces the body for the given role.
func (s *Symbol) SetScript(role ScriptRole, text string) {
	switch role {
	case RoleMaster:
		s.Master.Text = text
	case RolePlan:
		s.Plan.Text = text
	case Role3D:
		s.Geometry.Text = text
	case RoleParam:
		s.Param.Text = text
	case RoleUI:
		s.UI.Text = text
	case RoleProperties:
		s.Properties.Text = text
	}
}

// ValidateScripts runs the structural validator over every non-empty script
// body. Only the 3D script requires the END terminator.
func (s *Symbol) ValidateScripts() []gdl.Defect {
	var defects []gdl.Defect
	for _, role := range Roles {
		body := s.Script(role)
		if body == "" {
			continue
		}
		if role == Role3D {
			defects = append(defects, s.annotate(role, gdl.Validate(body))...)
		} else {
			defects = append(defects, s.annotate(role, gdl.ValidateBody(body))...)
		}
	}
	return defects
}

func (s *Symbol) annotate(role ScriptRole, defects []gdl.Defect) []gdl.Defect {
	for i := range defects {
		defects[i].Detail = fmt.Sprintf("[%s script] %s", role, defects[i].Detail)
	}
	return defects
}

// Macros returns the external macro names the part CALLs, across all scripts.
func (s *Symbol) Macros() []string {
	seen := make(map[string]bool)
	var out []string
	for _, role := range Roles {
		for _, name := range gdl.Calls(s.Script(role)) {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
