package luahost

import (
	"github.com/inbucket/mailroute/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const recipientName = "recipient"

func registerRecipientType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(recipientName)
	ls.SetGlobal(recipientName, mt)

	ls.SetField(mt, "__index", ls.NewFunction(recipientIndex))
}

// Gets a field value from a Recipient user object, so scripts may write `rcpt.user`.
func recipientIndex(ls *lua.LState) int {
	rcpt := checkUserData[event.Recipient](ls, 1, recipientName)
	field := ls.CheckString(2)

	switch field {
	case "id":
		ls.Push(lua.LString(rcpt.ID))
	case "from":
		ls.Push(lua.LString(rcpt.From))
	case "address":
		ls.Push(lua.LString(rcpt.Address))
	case "local_part":
		ls.Push(lua.LString(rcpt.LocalPart))
	case "domain":
		ls.Push(lua.LString(rcpt.Domain))
	case "user":
		ls.Push(lua.LString(rcpt.User))
	case "subaddress":
		ls.Push(lua.LString(rcpt.Subaddress))
	case "overridden":
		ls.Push(lua.LBool(rcpt.Overridden))
	case "admitted":
		ls.Push(lua.LBool(rcpt.Admitted))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}
