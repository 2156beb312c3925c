package tokenengine

import (
	"errors"
	"fmt"
)

// errNilInitialState guards against a Tokenizer implementation that
// returns a nil BeginState instead of erroring; treating it as a plain
// error keeps the nil-checks in StateCache.GetBeginState meaningful.
var errNilInitialState = errors.New("tokenizer returned nil initial state")

func panicError(r any) error {
	return fmt.Errorf("tokenizer panicked: %v", r)
}
