package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	out  *ssm.GetParameterOutput
	err  error
	last *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.last = in
	return f.out, f.err
}

func strPtr(s string) *string { return &s }

func TestGetParameter(t *testing.T) {
	api := &fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  strPtr("/tirebot/stripe-secret-key"),
		Value: strPtr("sk_live_1"),
		Type:  types.ParameterTypeSecureString,
	}}}
	c, err := New(api)
	require.NoError(t, err)

	v, err := c.GetParameter(context.Background(), " /tirebot/stripe-secret-key ")
	require.NoError(t, err)
	assert.Equal(t, "sk_live_1", v)
	assert.Equal(t, "/tirebot/stripe-secret-key", *api.last.Name)
	assert.True(t, *api.last.WithDecryption)
}

func TestGetParameter_NotFound(t *testing.T) {
	c, err := New(&fakeAPI{err: &types.ParameterNotFound{}})
	require.NoError(t, err)

	_, err = c.GetParameter(context.Background(), "/tirebot/admin-token")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetParameter_Errors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	c, err := New(&fakeAPI{err: errors.New("throttled")})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "throttled")

	_, err = c.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	c, err = New(&fakeAPI{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}})
	require.NoError(t, err)
	_, err = c.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "no value")
}
