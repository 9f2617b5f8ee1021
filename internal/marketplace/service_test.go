package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RushiPardeshi/agent-marketplace/internal/engine"
	"github.com/RushiPardeshi/agent-marketplace/internal/market"
	"github.com/RushiPardeshi/agent-marketplace/internal/safeguard"
	"github.com/RushiPardeshi/agent-marketplace/pkg/store"
	"github.com/RushiPardeshi/agent-marketplace/pkg/strategy"
)

func newTestService(t *testing.T, strategists StrategistMap) (*Service, store.Repository) {
	t.Helper()
	repo := store.NewMemory()
	t.Cleanup(func() { _ = repo.Close() })

	listings := []market.Listing{
		{ID: "laptop", Title: "MacBook Pro 2021 (14-inch)", Price: 1200, Category: "electronics"},
		{ID: "bike", Title: "Mountain Bike", Price: 1500, Category: "sports"},
	}
	for i := range listings {
		require.NoError(t, repo.SaveListing(context.Background(), &listings[i]))
	}

	machine := engine.New(safeguard.New(safeguard.Config{}))
	return NewService(repo, machine, strategists), repo
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _ := newTestService(t, StrategistMap{})
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, nil, []SellerSpec{{AgentID: "s1", ListingID: "laptop", MinPrice: 900}})
	assert.Error(t, err, "session without buyers must fail")

	_, err = svc.CreateSession(ctx,
		[]BuyerSpec{{AgentID: "b1", MaxPrice: 1100}},
		[]SellerSpec{{AgentID: "s1", ListingID: "missing", MinPrice: 900}})
	assert.ErrorIs(t, err, market.ErrListingNotFound)

	_, err = svc.CreateSession(ctx,
		[]BuyerSpec{{AgentID: "dual", MaxPrice: 1100}},
		[]SellerSpec{{AgentID: "dual", ListingID: "laptop", MinPrice: 900}})
	assert.Error(t, err, "an agent cannot hold both roles")
}

func TestStartNegotiationValidation(t *testing.T) {
	svc, _ := newTestService(t, StrategistMap{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx,
		[]BuyerSpec{
			{AgentID: "b1", MaxPrice: 1100},
			{AgentID: "b2", MaxPrice: 1000, Interests: []string{"s2"}},
		},
		[]SellerSpec{
			{AgentID: "s1", ListingID: "laptop", MinPrice: 900},
			{AgentID: "s2", ListingID: "bike", MinPrice: 1000},
		})
	require.NoError(t, err)

	_, err = svc.StartNegotiation(ctx, session.ID, "ghost", "s1")
	assert.ErrorIs(t, err, market.ErrUnknownParticipant)

	_, err = svc.StartNegotiation(ctx, session.ID, "b2", "s1")
	assert.ErrorIs(t, err, market.ErrNotInterested)

	_, err = svc.StartNegotiation(ctx, session.ID, "b1", "s1")
	require.NoError(t, err)

	_, err = svc.StartNegotiation(ctx, session.ID, "b1", "s1")
	assert.ErrorIs(t, err, market.ErrDuplicateNegotiation)

	_, err = svc.StartNegotiation(ctx, "no-such-session", "b1", "s1")
	assert.ErrorIs(t, err, market.ErrSessionNotFound)
}

// One seller, several interested buyers: the lone competing listing
// leaves each buyer at low leverage while demand pushes the seller high.
func TestStartNegotiationLeverage(t *testing.T) {
	svc, _ := newTestService(t, StrategistMap{})
	ctx := context.Background()

	buyers := []BuyerSpec{
		{AgentID: "b1", MaxPrice: 1100},
		{AgentID: "b2", MaxPrice: 1000},
		{AgentID: "b3", MaxPrice: 950},
		{AgentID: "b4", MaxPrice: 980},
		{AgentID: "b5", MaxPrice: 1050},
	}
	session, err := svc.CreateSession(ctx, buyers,
		[]SellerSpec{{AgentID: "s1", ListingID: "laptop", MinPrice: 900}})
	require.NoError(t, err)

	neg, err := svc.StartNegotiation(ctx, session.ID, "b1", "s1")
	require.NoError(t, err)

	assert.Equal(t, market.LeverageLow, neg.BuyerLeverage, "no competing sellers")
	assert.Equal(t, market.LeverageHigh, neg.SellerLeverage, "four other interested buyers")
	assert.Equal(t, 10, neg.MaxRounds)
	assert.InDelta(t, 1155.0, neg.SellerTarget, 1e-9, "high leverage anchors near the listing price")
}

func TestAddInterest(t *testing.T) {
	svc, _ := newTestService(t, StrategistMap{})
	ctx := context.Background()

	session, err := svc.CreateSession(ctx,
		[]BuyerSpec{{AgentID: "b1", MaxPrice: 1100, Interests: []string{"s1"}}},
		[]SellerSpec{
			{AgentID: "s1", ListingID: "laptop", MinPrice: 900},
			{AgentID: "s2", ListingID: "bike", MinPrice: 1000},
		})
	require.NoError(t, err)

	_, err = svc.StartNegotiation(ctx, session.ID, "b1", "s2")
	require.ErrorIs(t, err, market.ErrNotInterested)

	require.NoError(t, svc.AddInterest(ctx, session.ID, "b1", "s2"))
	// Adding twice is a no-op.
	require.NoError(t, svc.AddInterest(ctx, session.ID, "b1", "s2"))

	_, err = svc.StartNegotiation(ctx, session.ID, "b1", "s2")
	assert.NoError(t, err)

	err = svc.AddInterest(ctx, session.ID, "b1", "nobody")
	assert.ErrorIs(t, err, market.ErrUnknownParticipant)
}

func TestTranscriptIsStableBetweenCommits(t *testing.T) {
	strategists := StrategistMap{
		"b1": strategy.NewScripted(950, 1000),
		"s1": strategy.NewScripted(1150),
	}
	svc, _ := newTestService(t, strategists)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx,
		[]BuyerSpec{{AgentID: "b1", MaxPrice: 1100}},
		[]SellerSpec{{AgentID: "s1", ListingID: "laptop", MinPrice: 900}})
	require.NoError(t, err)
	neg, err := svc.StartNegotiation(ctx, session.ID, "b1", "s1")
	require.NoError(t, err)

	_, err = svc.ExecuteTurn(ctx, session.ID, neg.ID)
	require.NoError(t, err)

	first, err := svc.Transcript(ctx, session.ID, neg.ID)
	require.NoError(t, err)
	second, err := svc.Transcript(ctx, session.ID, neg.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 1)
	assert.Equal(t, 950.0, first[0].Offer)
}

func TestDealCascade(t *testing.T) {
	t.Run("counterpart without alternatives deadlocks", func(t *testing.T) {
		strategists := StrategistMap{
			"b1": strategy.NewScripted(1000),
			"b2": strategy.NewScripted(950),
			"s1": strategy.NewScripted(), // accepts immediately
		}
		svc, _ := newTestService(t, strategists)
		ctx := context.Background()

		session, err := svc.CreateSession(ctx,
			[]BuyerSpec{
				{AgentID: "b1", MaxPrice: 1100},
				{AgentID: "b2", MaxPrice: 1000},
			},
			[]SellerSpec{{AgentID: "s1", ListingID: "laptop", MinPrice: 900}})
		require.NoError(t, err)

		deal, err := svc.StartNegotiation(ctx, session.ID, "b1", "s1")
		require.NoError(t, err)
		other, err := svc.StartNegotiation(ctx, session.ID, "b2", "s1")
		require.NoError(t, err)

		// Buyer offers 1000, seller accepts.
		_, err = svc.ExecuteTurn(ctx, session.ID, deal.ID)
		require.NoError(t, err)
		_, err = svc.ExecuteTurn(ctx, session.ID, deal.ID)
		require.NoError(t, err)

		final, err := svc.GetSession(ctx, session.ID)
		require.NoError(t, err)

		assert.Equal(t, market.StatusAgreed, final.Negotiations[deal.ID].Status)
		assert.Equal(t, 1000.0, final.Negotiations[deal.ID].FinalPrice)
		assert.False(t, final.Buyers["b1"].Active)
		assert.False(t, final.Sellers["s1"].Active)
		assert.Equal(t, "b1", final.Listings["laptop"].SoldTo)
		assert.Equal(t, []float64{1000}, final.Market.RecentPrices)

		// b2 had no other seller to turn to.
		assert.Equal(t, market.StatusDeadlock, final.Negotiations[other.ID].Status)

		// Turning the wheel on a concluded negotiation is refused.
		_, err = svc.ExecuteTurn(ctx, session.ID, other.ID)
		assert.ErrorIs(t, err, market.ErrStaleNegotiation)
	})

	t.Run("counterpart with alternatives is switched", func(t *testing.T) {
		strategists := StrategistMap{
			"b1": strategy.NewScripted(1000),
			"b2": strategy.NewScripted(950),
			"s1": strategy.NewScripted(),
			"s2": strategy.NewScripted(1400),
		}
		svc, _ := newTestService(t, strategists)
		ctx := context.Background()

		session, err := svc.CreateSession(ctx,
			[]BuyerSpec{
				{AgentID: "b1", MaxPrice: 1100},
				{AgentID: "b2", MaxPrice: 1000},
			},
			[]SellerSpec{
				{AgentID: "s1", ListingID: "laptop", MinPrice: 900},
				{AgentID: "s2", ListingID: "bike", MinPrice: 1000},
			})
		require.NoError(t, err)

		deal, err := svc.StartNegotiation(ctx, session.ID, "b1", "s1")
		require.NoError(t, err)
		other, err := svc.StartNegotiation(ctx, session.ID, "b2", "s1")
		require.NoError(t, err)

		_, err = svc.ExecuteTurn(ctx, session.ID, deal.ID)
		require.NoError(t, err)
		_, err = svc.ExecuteTurn(ctx, session.ID, deal.ID)
		require.NoError(t, err)

		final, err := svc.GetSession(ctx, session.ID)
		require.NoError(t, err)

		// b2 can still court s2, so its negotiation ends as switched.
		assert.Equal(t, market.StatusSwitched, final.Negotiations[other.ID].Status)
		assert.True(t, final.Buyers["b2"].Active)
	})
}

func TestSwitchSeller(t *testing.T) {
	strategists := StrategistMap{
		"b1": strategy.NewScripted(950),
		"s1": strategy.NewScripted(1400),
		"s2": strategy.NewScripted(1100),
	}
	svc, _ := newTestService(t, strategists)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx,
		[]BuyerSpec{{AgentID: "b1", MaxPrice: 1100}},
		[]SellerSpec{
			{AgentID: "s1", ListingID: "bike", MinPrice: 1300},
			{AgentID: "s2", ListingID: "laptop", MinPrice: 900},
		})
	require.NoError(t, err)

	old, err := svc.StartNegotiation(ctx, session.ID, "b1", "s1")
	require.NoError(t, err)
	_, err = svc.ExecuteTurn(ctx, session.ID, old.ID)
	require.NoError(t, err)

	fresh, err := svc.SwitchSeller(ctx, session.ID, "b1", "s1", "s2")
	require.NoError(t, err)

	final, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)

	oldNeg := final.Negotiations[old.ID]
	assert.Equal(t, market.StatusSwitched, oldNeg.Status)
	require.Len(t, oldNeg.Turns, 1, "the abandoned transcript is preserved")

	newNeg := final.Negotiations[fresh.ID]
	require.NotNil(t, newNeg)
	assert.Equal(t, "s2", newNeg.SellerID)
	assert.Empty(t, newNeg.Turns, "nothing carries over from the abandoned negotiation")

	// No active negotiation with s1 remains.
	_, err = svc.SwitchSeller(ctx, session.ID, "b1", "s1", "s2")
	assert.ErrorIs(t, err, market.ErrNegotiationNotFound)
}
