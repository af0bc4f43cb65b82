package session

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/tirebot/internal/catalog"
	"github.com/mmeshcher/tirebot/internal/model"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func sampleSession() *Session {
	w := 205
	return &Session{
		Step:     StepSelectHeight,
		Criteria: Criteria{Width: &w},
		Options: &OptionSnapshot{
			Step:    StepSelectHeight,
			Options: []catalog.Option{{Value: 55, Models: 3}, {Value: 60, Models: 1}},
		},
		Results: &ProductSnapshot{
			Step: StepViewingResults,
			Products: []ProductView{
				{ID: "p1", Brand: "Michelin", Model: "Primacy 4", Price: decimal.RequireFromString("155.00")},
			},
		},
		Cart: []model.CartItem{{ProductID: "p1", Quantity: 4}},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "session:+590690000000", Key("+590690000000"))
}

func TestStepText_RoundTripByName(t *testing.T) {
	b, err := StepViewOrders.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "view_orders", string(b))

	var s Step
	require.NoError(t, s.UnmarshalText([]byte("select_diameter")))
	assert.Equal(t, StepSelectDiameter, s)
	assert.Error(t, s.UnmarshalText([]byte("payment")))
}

func TestStepNames_CoverEveryStep(t *testing.T) {
	for s := Step(0); s < NumSteps; s++ {
		assert.NotEmpty(t, stepNames[s], "step %d has no name", int(s))
	}
}

func TestInSelection(t *testing.T) {
	selection := map[Step]bool{
		StepSelectWidth:    true,
		StepSelectHeight:   true,
		StepSelectDiameter: true,
		StepViewingResults: true,
	}
	for s := Step(0); s < NumSteps; s++ {
		assert.Equal(t, selection[s], s.InSelection(), s.String())
	}
}

func TestSnapshotsAreTaggedWithStep(t *testing.T) {
	s := sampleSession()

	opts, ok := s.OptionsFor(StepSelectHeight)
	require.True(t, ok)
	assert.Equal(t, []int{55, 60}, catalog.Values(opts))

	_, ok = s.OptionsFor(StepSelectDiameter)
	assert.False(t, ok)

	_, ok = s.ResultsFor(StepViewingResults)
	assert.True(t, ok)
	_, ok = s.ResultsFor(StepCart)
	assert.False(t, ok)

	_, ok = s.OrdersFor(StepViewOrders)
	assert.False(t, ok)
}

func TestEncodeDecode_PreservesSnapshots(t *testing.T) {
	s := sampleSession()

	data, err := Encode(s)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, StepSelectHeight, got.Step)
	require.NotNil(t, got.Criteria.Width)
	assert.Equal(t, 205, *got.Criteria.Width)
	assert.Equal(t, s.Options.Options, got.Options.Options)
	assert.True(t, got.Results.Products[0].Price.Equal(decimal.RequireFromString("155")))
	assert.Equal(t, s.Cart, got.Cart)
}

func TestDecode_CorruptRecord(t *testing.T) {
	for _, raw := range []string{`{"step":"select_brand"}`, `not json`} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrCorrupt, raw)
		assert.NotErrorIs(t, err, ErrNotFound, raw)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	_, err := store.Get(ctx, "session:a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "session:a", sampleSession(), time.Hour))

	clock.t = clock.t.Add(59 * time.Minute)
	got, err := store.Get(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, StepSelectHeight, got.Step)

	clock.t = clock.t.Add(time.Minute)
	_, err = store.Get(ctx, "session:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	s := sampleSession()
	require.NoError(t, store.Set(ctx, "k", s, time.Hour))

	s.Cart[0].Quantity = 99

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Cart[0].Quantity)
}

type fakeDynamo struct {
	items   map[string]map[string]types.AttributeValue
	getErr  error
	putErr  error
	lastPut *dynamodb.PutItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[pk]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	if f.items == nil {
		f.items = make(map[string]map[string]types.AttributeValue)
	}
	pk := in.Item["PK"].(*types.AttributeValueMemberS).Value
	f.items[pk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestNewDynamoStore_Validation(t *testing.T) {
	_, err := NewDynamoStore(nil, "t", nil)
	assert.Error(t, err)
	_, err = NewDynamoStore(&fakeDynamo{}, "  ", nil)
	assert.Error(t, err)
}

func TestDynamoStore_SetGet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	db := &fakeDynamo{}
	store, err := NewDynamoStore(db, "sessions", clock.Now)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session:a", sampleSession(), 2*time.Hour))

	require.NotNil(t, db.lastPut)
	assert.Equal(t, "sessions", *db.lastPut.TableName)
	ttl := db.lastPut.Item["ttl"].(*types.AttributeValueMemberN).Value
	assert.Equal(t, strconv.FormatInt(1_700_000_000+7200, 10), ttl)

	got, err := store.Get(ctx, "session:a")
	require.NoError(t, err)
	assert.Equal(t, StepSelectHeight, got.Step)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = store.Get(ctx, "session:a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_MissingItem(t *testing.T) {
	store, err := NewDynamoStore(&fakeDynamo{}, "sessions", nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "session:none")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoStore_PropagatesErrors(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("throttled"), putErr: errors.New("throttled")}
	store, err := NewDynamoStore(db, "sessions", nil)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Error(t, store.Set(context.Background(), "k", New(), time.Hour))
}
