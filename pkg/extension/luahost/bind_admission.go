package luahost

import (
	"fmt"

	"github.com/inbucket/mailroute/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const admissionName = "admission"

func registerAdmissionType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(admissionName)
	ls.SetGlobal(admissionName, mt)

	// Static attributes.
	ls.SetField(mt, "admit", ls.NewFunction(newAdmission(true)))
	ls.SetField(mt, "deny", ls.NewFunction(newAdmission(false)))
}

func newAdmission(admit bool) func(*lua.LState) int {
	return func(ls *lua.LState) int {
		ls.Push(wrapUserData(ls, admissionName, &event.AdmissionResponse{Admit: admit}))
		return 1
	}
}

func unwrapAdmission(lv lua.LValue) (*event.AdmissionResponse, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(*event.AdmissionResponse); ok {
			return v, nil
		}
	}

	return nil, fmt.Errorf("expected AdmissionResponse, got %q", lv.Type().String())
}
