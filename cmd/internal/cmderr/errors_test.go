package cmderr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/argo-books/argo-core/pkg/util/fileerr"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{nil, 0},
		{errors.New("any"), CodeGeneric},
		{ExitErr{Code: 42, Cause: errors.New("custom")}, 42},
		{fmt.Errorf("wrapped: %w", ExitErr{Code: CodePasswordIncorrect, Cause: errors.New("no")}), CodePasswordIncorrect},
		{fileerr.WithOp("open", "a.argo", fileerr.New(fileerr.KindInvalidPassword, "verifier mismatch")), CodeInvalidPassword},
		{fileerr.New(fileerr.KindAuthentication, "tag"), CodeCorrupt},
		{fileerr.New(fileerr.KindCorruptFooter, "marker"), CodeCorrupt},
		{fileerr.New(fileerr.KindVersionIncompatible, "newer"), CodeIncompatible},
		{fileerr.New(fileerr.KindMigrationFailed, "step"), CodeMigrationFailed},
		{fileerr.New(fileerr.KindRestoreFailed, "rollback"), CodeRestoreFailed},
		{fileerr.New(fileerr.KindInvalidEntry, "name"), CodeInvalidInput},
		{fileerr.New(fileerr.KindIO, "disk"), CodeGeneric},
		{fileerr.WithOp("save", "a.argo", context.Canceled), CodeCanceled},
	} {
		require.Equal(t, tc.code, ExitCode(tc.err), tc.err)
	}
}
