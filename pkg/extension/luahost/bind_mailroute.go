package luahost

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const (
	mailrouteName       = "mailroute"
	mailrouteAfterName  = "mailroute_after"
	mailrouteBeforeName = "mailroute_before"
)

// Mailroute is the Go side of the `mailroute` Lua global, holding the functions a script
// assigned to the extension events.
type Mailroute struct {
	After  MailrouteAfterFuncs
	Before MailrouteBeforeFuncs
}

// MailrouteAfterFuncs holds the `mailroute.after` functions.
type MailrouteAfterFuncs struct {
	MessageForwarded *lua.LFunction
	MessageRejected  *lua.LFunction
}

// MailrouteBeforeFuncs holds the `mailroute.before` functions.
type MailrouteBeforeFuncs struct {
	RecipientAdmitted *lua.LFunction
}

func registerMailrouteTypes(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailrouteName)
	ls.SetField(mt, "__index", ls.NewFunction(mailrouteIndex))

	mt = ls.NewTypeMetatable(mailrouteAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(mailrouteAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mailrouteAfterNewIndex))

	mt = ls.NewTypeMetatable(mailrouteBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(mailrouteBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mailrouteBeforeNewIndex))

	ls.SetGlobal(mailrouteName, wrapUserData(ls, mailrouteName, &Mailroute{}))
}

func wrapUserData(ls *lua.LState, typeName string, val any) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(typeName))

	return ud
}

func getMailroute(ls *lua.LState) (*Mailroute, error) {
	lv := ls.GetGlobal(mailrouteName)
	if lv == nil {
		return nil, errors.New("mailroute object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("mailroute object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*Mailroute)
	if !ok {
		return nil, fmt.Errorf("mailroute object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

// checkUserData returns the value of the userdata at stack position pos, raising a Lua argument
// error if it is not a T.
func checkUserData[T any](ls *lua.LState, pos int, typeName string) *T {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*T); ok {
		return val
	}
	ls.ArgError(pos, typeName+" expected")
	return nil
}

// mailroute getter.
func mailrouteIndex(ls *lua.LState) int {
	mr := checkUserData[Mailroute](ls, 1, mailrouteName)
	field := ls.CheckString(2)

	switch field {
	case "after":
		ls.Push(wrapUserData(ls, mailrouteAfterName, &mr.After))
	case "before":
		ls.Push(wrapUserData(ls, mailrouteBeforeName, &mr.Before))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// mailroute.after getter.
func mailrouteAfterIndex(ls *lua.LState) int {
	after := checkUserData[MailrouteAfterFuncs](ls, 1, mailrouteAfterName)
	field := ls.CheckString(2)

	switch field {
	case "message_forwarded":
		ls.Push(funcOrNil(after.MessageForwarded))
	case "message_rejected":
		ls.Push(funcOrNil(after.MessageRejected))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// mailroute.after setter.
func mailrouteAfterNewIndex(ls *lua.LState) int {
	after := checkUserData[MailrouteAfterFuncs](ls, 1, mailrouteAfterName)
	index := ls.CheckString(2)

	switch index {
	case "message_forwarded":
		after.MessageForwarded = ls.CheckFunction(3)
	case "message_rejected":
		after.MessageRejected = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid mailroute.after index %q", index)
	}

	return 0
}

// mailroute.before getter.
func mailrouteBeforeIndex(ls *lua.LState) int {
	before := checkUserData[MailrouteBeforeFuncs](ls, 1, mailrouteBeforeName)
	field := ls.CheckString(2)

	switch field {
	case "recipient_admitted":
		ls.Push(funcOrNil(before.RecipientAdmitted))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// mailroute.before setter.
func mailrouteBeforeNewIndex(ls *lua.LState) int {
	before := checkUserData[MailrouteBeforeFuncs](ls, 1, mailrouteBeforeName)
	index := ls.CheckString(2)

	switch index {
	case "recipient_admitted":
		before.RecipientAdmitted = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid mailroute.before index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
