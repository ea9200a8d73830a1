package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is the keyword of a callback token.
type Action string

const (
	ActionNoop      Action = "noop"
	ActionClose     Action = "close"
	ActionTitle     Action = "title"   // title=<title>
	ActionDownload  Action = "dl"      // dl=<title>=<episode>=<origin>
	ActionPage      Action = "page"    // page=<title>=<anchor>=<origin>=prev|next
	ActionDelete    Action = "delep"   // delep=<title>=<episode>=<origin>
	ActionRecheck   Action = "recheck" // recheck=<title>, 0 when nothing is pending
	ActionSearch    Action = "search"  // search=code|name|genre
	ActionRecent    Action = "recent"
	ActionTop       Action = "top"
	ActionAll       Action = "all"    // all=<page>
	ActionBuy       Action = "buy"    // buy=<days>
	ActionExtend    Action = "extend"
	ActionCredit    Action = "credit" // credit=<user>
	ActionDebit     Action = "debit"  // debit=<user>
	ActionBroadcast Action = "bcast"  // bcast=copy|forward|cancel
	ActionStopCast  Action = "bcstop"
)

const (
	tokenSeparator = "="
	// maxTokenLength is the callback data limit of the chat platform.
	maxTokenLength = 64
)

type argSpec struct {
	values []string // nil means numeric
}

var (
	numeric    = argSpec{}
	directions = argSpec{values: []string{"prev", "next"}}
	searches   = argSpec{values: []string{"code", "name", "genre"}}
	castModes  = argSpec{values: []string{"copy", "forward", "cancel"}}
)

var actionArgs = map[Action][]argSpec{
	ActionNoop:      nil,
	ActionClose:     nil,
	ActionTitle:     {numeric},
	ActionDownload:  {numeric, numeric, numeric},
	ActionPage:      {numeric, numeric, numeric, directions},
	ActionDelete:    {numeric, numeric, numeric},
	ActionRecheck:   {numeric},
	ActionSearch:    {searches},
	ActionRecent:    nil,
	ActionTop:       nil,
	ActionAll:       {numeric},
	ActionBuy:       {numeric},
	ActionExtend:    nil,
	ActionCredit:    {numeric},
	ActionDebit:     {numeric},
	ActionBroadcast: {castModes},
	ActionStopCast:  nil,
}

var (
	ErrMalformedToken = errors.New("malformed_token")
	ErrUnknownAction  = errors.New("unknown_action")
	ErrTokenArity     = errors.New("token_arity")
)

// Token is a decoded callback payload.
type Token struct {
	Action Action
	Args   []string
}

// ParseToken decodes and validates raw callback data.
func ParseToken(raw string) (Token, error) {
	if raw == "" || len(raw) > maxTokenLength {
		return Token{}, ErrMalformedToken
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 0x21 || raw[i] > 0x7e {
			return Token{}, ErrMalformedToken
		}
	}
	parts := strings.Split(raw, tokenSeparator)
	action := Action(parts[0])
	specs, ok := actionArgs[action]
	if !ok {
		return Token{}, ErrUnknownAction
	}
	args := parts[1:]
	if len(args) != len(specs) {
		return Token{}, ErrTokenArity
	}
	for i, spec := range specs {
		if err := spec.check(args[i]); err != nil {
			return Token{}, fmt.Errorf("%s arg %d: %w", action, i, err)
		}
	}
	return Token{Action: action, Args: args}, nil
}

func (s argSpec) check(value string) error {
	if s.values == nil {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return ErrMalformedToken
		}
		return nil
	}
	for _, allowed := range s.values {
		if value == allowed {
			return nil
		}
	}
	return ErrMalformedToken
}

// Int returns the numeric argument at i. Tokens from ParseToken are
// validated, so the zero value only appears for out of range indexes.
func (t Token) Int(i int) int64 {
	if i < 0 || i >= len(t.Args) {
		return 0
	}
	n, _ := strconv.ParseInt(t.Args[i], 10, 64)
	return n
}

func (t Token) Arg(i int) string {
	if i < 0 || i >= len(t.Args) {
		return ""
	}
	return t.Args[i]
}

func (t Token) String() string {
	return EncodeToken(t.Action, t.Args...)
}

// EncodeToken joins an action and its arguments.
func EncodeToken(action Action, args ...string) string {
	if len(args) == 0 {
		return string(action)
	}
	return string(action) + tokenSeparator + strings.Join(args, tokenSeparator)
}

func itoa[T ~int | ~int64](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func titleToken(titleID int64) string {
	return EncodeToken(ActionTitle, itoa(titleID))
}

func downloadToken(titleID int64, episode, origin int) string {
	return EncodeToken(ActionDownload, itoa(titleID), itoa(episode), itoa(origin))
}

func pageToken(titleID int64, anchor, origin int, dir string) string {
	return EncodeToken(ActionPage, itoa(titleID), itoa(anchor), itoa(origin), dir)
}

func deleteToken(titleID int64, episode, origin int) string {
	return EncodeToken(ActionDelete, itoa(titleID), itoa(episode), itoa(origin))
}

func recheckToken(pendingTitle int64) string {
	return EncodeToken(ActionRecheck, itoa(pendingTitle))
}
