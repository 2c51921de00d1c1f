package verify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideSuccess(t *testing.T) {
	res := RunResult{Total: 3, Processed: 3, Status: Success}
	assert.Equal(t, Proceed, Decide(res, Interactive))
	assert.Equal(t, Proceed, Decide(res, Unattended))
	assert.Equal(t, Proceed, Decide(res, TestMode))
}

func TestDecideIntegrityFailure(t *testing.T) {
	res := RunResult{
		Total:     3,
		Processed: 3,
		Status:    IntegrityFailure,
		Failures:  []Failure{{Ordinal: 1, Outcome: HashMismatch}},
	}
	assert.Equal(t, ConfirmRequired, Decide(res, Interactive))
	assert.Equal(t, Terminate, Decide(res, Unattended))
	assert.Equal(t, Proceed, Decide(res, TestMode))
}

func TestDecideFatal(t *testing.T) {
	res := Fatal(errors.New("manifest unreadable"))
	assert.Equal(t, ConfirmRequired, Decide(res, Interactive))
	assert.Equal(t, Terminate, Decide(res, Unattended))
	assert.Equal(t, Proceed, Decide(res, TestMode))
}

func TestDecideCancelledClean(t *testing.T) {
	res := RunResult{Total: 5, Processed: 2, Status: Success, Cancelled: true}
	assert.Equal(t, Proceed, Decide(res, Interactive))
	assert.Equal(t, Proceed, Decide(res, Unattended))
	assert.Equal(t, Proceed, Decide(res, TestMode))
}

func TestDecideCancelledWithFailures(t *testing.T) {
	res := RunResult{
		Total:     5,
		Processed: 2,
		Status:    IntegrityFailure,
		Cancelled: true,
		Failures:  []Failure{{Ordinal: 1, Outcome: HashMismatch}},
	}
	assert.Equal(t, ConfirmRequired, Decide(res, Interactive))
	assert.Equal(t, Terminate, Decide(res, Unattended))
}

func TestMultiSinksSkipNil(t *testing.T) {
	var got [][2]int
	p := MultiProgress(nil, ProgressFunc(func(c, tot int) {
		got = append(got, [2]int{c, tot})
	}))
	p.Report(1, 2)
	assert.Equal(t, [][2]int{{1, 2}}, got)

	var fails []Failure
	f := MultiFailure(nil, FailureFunc(func(x Failure) {
		fails = append(fails, x)
	}))
	f.Report(Failure{Ordinal: 7})
	assert.Len(t, fails, 1)
	assert.Equal(t, 7, fails[0].Ordinal)
}
