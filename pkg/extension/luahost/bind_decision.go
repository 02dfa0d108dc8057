package luahost

import (
	"github.com/inbucket/mailroute/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const routeDecisionName = "route_decision"

func registerRouteDecisionType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(routeDecisionName)
	ls.SetGlobal(routeDecisionName, mt)

	ls.SetField(mt, "__index", ls.NewFunction(routeDecisionIndex))
}

// Gets a field value from a RouteDecision user object.
func routeDecisionIndex(ls *lua.LState) int {
	d := checkUserData[event.RouteDecision](ls, 1, routeDecisionName)
	field := ls.CheckString(2)

	switch field {
	case "id":
		ls.Push(lua.LString(d.ID))
	case "from":
		ls.Push(lua.LString(d.From))
	case "to":
		ls.Push(lua.LString(d.To))
	case "subject":
		ls.Push(lua.LString(d.Subject))
	case "size":
		ls.Push(lua.LNumber(d.Size))
	case "action":
		ls.Push(lua.LString(d.Action))
	case "phase":
		ls.Push(lua.LString(d.Phase))
	case "addresses":
		lt := &lua.LTable{}
		for _, addr := range d.Addresses {
			lt.Append(lua.LString(addr))
		}
		ls.Push(lt)
	case "reason":
		ls.Push(lua.LString(d.Reason))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}
