package mediasoupclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// testTimeout bounds every negotiation a suite test runs.
const testTimeout = 5 * time.Second

// TestingSuite is a suite.Suite failing fast by default, with a context per
// test canceled when the test ends.
type TestingSuite struct {
	*require.Assertions
	proxy suite.Suite
	ctx   context.Context
}

func (suite *TestingSuite) T() *testing.T {
	return suite.proxy.T()
}

func (suite *TestingSuite) SetT(t *testing.T) {
	suite.proxy.SetT(t)
	suite.Assertions = require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	suite.ctx = ctx
}

func (suite *TestingSuite) SetS(s suite.TestingSuite) {
	suite.proxy.SetS(s)
}

func (suite *TestingSuite) Require() *require.Assertions {
	return suite.proxy.Require()
}

func (suite *TestingSuite) Assert() *assert.Assertions {
	return suite.proxy.Assert()
}

// Ctx returns the context of the running test.
func (suite *TestingSuite) Ctx() context.Context {
	return suite.ctx
}

func (suite *TestingSuite) Fn() *MockFunc {
	return NewMockFunc(suite.T())
}
