package namer

import (
	"context"
	"errors"
	"testing"

	"github.com/84hero/ens-namer/pkg/chain"
	"github.com/84hero/ens-namer/pkg/conn"
	"github.com/84hero/ens-namer/pkg/ens"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wallet   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	stranger = common.HexToAddress("0x2222222222222222222222222222222222222222")
	contract = common.HexToAddress("0x9876543210987654321098765432109876543210")
)

const testName = "test.example.eth"

type fixture struct {
	l1, l2    *fakeChain
	w1, w2    *world
	reporter  *memReporter
	engine    *Engine
	l1Profile chain.Profile
	l2Profile chain.Profile
	withL2    bool
}

func newFixture(t *testing.T, withL2 bool) *fixture {
	t.Helper()
	l1p, err := chain.GetProfile(chain.Sepolia)
	require.NoError(t, err)
	l2p, err := chain.GetProfile(chain.BaseSepolia)
	require.NoError(t, err)

	f := &fixture{
		w1:        newWorld(),
		w2:        newWorld(),
		reporter:  &memReporter{},
		l1Profile: l1p,
		l2Profile: l2p,
		withL2:    withL2,
	}
	f.l1 = newFakeChain(f.w1, l1p, wallet)
	f.l2 = newFakeChain(f.w2, l2p, wallet)
	f.engine = New(Options{Reporter: f.reporter})
	return f
}

func (f *fixture) request() Request {
	req := Request{
		Name:          testName,
		Contract:      contract.Hex(),
		CorrelationID: "corr-1",
		L1:            Target{Chain: f.l1, Profile: f.l1Profile},
	}
	if f.withL2 {
		req.L2 = &Target{Chain: f.l2, Profile: f.l2Profile}
	}
	return req
}

func (f *fixture) run(t *testing.T) *Result {
	t.Helper()
	res, err := f.engine.Run(context.Background(), f.request())
	require.NoError(t, err)
	return res
}

func methods(ws []write) []string {
	var out []string
	for _, w := range ws {
		out = append(out, w.Method)
	}
	return out
}

func TestRun_OwnableFreshName(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet

	res := f.run(t)
	assert.Equal(t, Ownable, res.ContractType)
	assert.NoError(t, res.Reverse)
	for _, s := range []Step{StepSubname, StepForwardResolution, StepReverseResolution} {
		_, ok := res.Tx(s)
		assert.True(t, ok, s)
	}

	writes := f.l1.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, common.HexToAddress(f.l1Profile.Registry), writes[0].To)
	assert.Equal(t, common.HexToAddress(f.l1Profile.ReverseRegistrar), writes[2].To)
	assert.Equal(t, testName, f.w1.names[ens.ReverseNode(contract)])
	assert.Equal(t, contract, f.w1.addr[ens.NameHash(testName)])

	require.Len(t, f.reporter.events, 3)
	ev := f.reporter.events[2]
	assert.Equal(t, "corr-1", ev.CorrelationID)
	assert.Equal(t, string(StepReverseResolution), ev.Step)
	assert.Equal(t, "Ownable", ev.ContractType)
	assert.Equal(t, uint64(11155111), ev.Network)
	assert.Equal(t, wallet.Hex(), ev.DeployerAddress)
	assert.Equal(t, contract.Hex(), ev.ContractAddress)
	assert.Equal(t, testName, ev.EnsName)
	assert.Equal(t, DefaultOpType, ev.OpType)
	assert.Equal(t, "ens-namer", ev.Source)
	assert.Equal(t, res.Transactions[StepReverseResolution].Hex(), ev.TxnHash)
}

func TestRun_Idempotent(t *testing.T) {
	for _, withL2 := range []bool{false, true} {
		f := newFixture(t, withL2)
		f.w1.owners[contract] = wallet
		f.w2.owners[contract] = wallet

		first := f.run(t)
		assert.NotZero(t, first.Writes())
		before := len(f.l1.Writes()) + len(f.l2.Writes())

		second := f.run(t)
		assert.Zero(t, second.Writes())
		assert.Equal(t, before, len(f.l1.Writes())+len(f.l2.Writes()))
		assert.Equal(t, Ownable, second.ContractType)
	}
}

func TestRun_WrappedParent(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet
	f.w1.wrapped[ens.NameHash("example.eth")] = true

	f.run(t)
	writes := f.l1.Writes()
	require.NotEmpty(t, writes)
	assert.Equal(t, common.HexToAddress(f.l1Profile.NameWrapper), writes[0].To)
	assert.Equal(t, "setSubnodeRecord", writes[0].Method)
	assert.True(t, f.w1.records[ens.NameHash(testName)])
}

func TestRun_NoNameWrapperOnChain(t *testing.T) {
	f := newFixture(t, false)
	f.l1Profile.NameWrapper = ""
	f.l1.profile = f.l1Profile
	f.w1.owners[contract] = wallet

	f.run(t)
	assert.False(t, f.l1.called("isWrapped"))
	assert.Equal(t, common.HexToAddress(f.l1Profile.Registry), f.l1.Writes()[0].To)
}

func TestRun_ExistingSubnameSkipped(t *testing.T) {
	f := newFixture(t, false)
	f.w1.records[ens.NameHash(testName)] = true
	f.w1.owners[contract] = wallet

	res := f.run(t)
	_, ok := res.Tx(StepSubname)
	assert.False(t, ok)
	assert.False(t, f.l1.called("isWrapped"))
}

// Forward record already points at the contract
func TestRun_ForwardAlreadySet(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet
	f.w1.addr[ens.NameHash(testName)] = contract

	res := f.run(t)
	_, ok := res.Tx(StepForwardResolution)
	assert.False(t, ok)
	assert.NotContains(t, methods(f.l1.Writes()), "setAddr")
}

func TestRun_ReverseClaimer(t *testing.T) {
	f := newFixture(t, false)
	f.w1.regOwner[ens.ReverseNode(contract)] = wallet

	res := f.run(t)
	assert.Equal(t, ReverseClaimer, res.ContractType)
	_, ok := res.Tx(StepReverseResolution)
	assert.True(t, ok)

	writes := f.l1.Writes()
	last := writes[len(writes)-1]
	assert.Equal(t, "setName", last.Method)
	assert.Equal(t, common.HexToAddress(f.l1Profile.PublicResolver), last.To)
	assert.Equal(t, testName, f.w1.names[ens.ReverseNode(contract)])
}

func TestRun_OwnableWinsOverSelfClaiming(t *testing.T) {
	f := newFixture(t, false)
	f.w1.regOwner[ens.ReverseNode(contract)] = wallet
	f.w1.owners[contract] = wallet

	res := f.run(t)
	assert.Equal(t, Ownable, res.ContractType)
	writes := f.l1.Writes()
	assert.Equal(t, common.HexToAddress(f.l1Profile.ReverseRegistrar), writes[len(writes)-1].To)
}

func TestRun_UnauthorizedSkipsReverse(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *world)
	}{
		{"ownable by someone else", func(w *world) {
			w.owners[contract] = stranger
		}},
		{"self-claimed but owned by someone else", func(w *world) {
			w.regOwner[ens.ReverseNode(contract)] = wallet
			w.owners[contract] = stranger
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			tt.setup(f.w1)

			res := f.run(t)
			assert.ErrorIs(t, res.Reverse, ErrUnauthorized)
			_, ok := res.Tx(StepReverseResolution)
			assert.False(t, ok)
			assert.NotContains(t, methods(f.l1.Writes()), "setNameForAddr")
			assert.NotContains(t, methods(f.l1.Writes()), "setName")
			assert.Len(t, f.l1.Writes(), 2)
		})
	}
}

func TestRun_UnclassifiedContract(t *testing.T) {
	f := newFixture(t, false)

	res := f.run(t)
	assert.Equal(t, Unknown, res.ContractType)
	assert.ErrorIs(t, res.Reverse, ErrUnclassifiedContract)
	assert.Contains(t, res.Reverse.Error(), "only Ownable/ReverseClaimer contracts can be named")
	assert.Equal(t, []string{"setSubnodeRecord", "setAddr"}, methods(f.l1.Writes()))
}

func TestRun_L2NotOwnable(t *testing.T) {
	f := newFixture(t, true)
	f.w1.owners[contract] = wallet

	res := f.run(t)
	_, ok := res.Tx(StepL2ForwardResolution)
	assert.True(t, ok)
	_, ok = res.Tx(StepL2ReverseResolution)
	assert.False(t, ok)
	assert.ErrorIs(t, res.L2Reverse, ErrNotOwnableOnL2)
	assert.Empty(t, f.l2.Writes())
}

func TestRun_L2Mirroring(t *testing.T) {
	f := newFixture(t, true)
	f.w1.owners[contract] = wallet
	f.w2.owners[contract] = wallet

	res := f.run(t)
	assert.NoError(t, res.L2Reverse)
	assert.Len(t, res.Transactions, 5)

	l1Writes := f.l1.Writes()
	assert.Equal(t, "setAddr", l1Writes[len(l1Writes)-1].Method)
	require.Len(t, f.l2.Writes(), 1)
	assert.Equal(t, common.HexToAddress(f.l2Profile.L2ReverseRegistrar), f.l2.Writes()[0].To)
	assert.Equal(t, testName, f.w2.l2Names[contract])

	last := f.reporter.events[len(f.reporter.events)-1]
	assert.Equal(t, string(StepL2ReverseResolution), last.Step)
	assert.Equal(t, f.l2Profile.ChainID, last.Network)
	assert.Equal(t, "https://app.enscribe.xyz/explore/84532/"+contract.Hex(), res.ExplorerURL)
}

func TestRun_L2AfterUnauthorizedL1(t *testing.T) {
	f := newFixture(t, true)
	f.w1.owners[contract] = stranger
	f.w2.owners[contract] = wallet

	res := f.run(t)
	assert.ErrorIs(t, res.Reverse, ErrUnauthorized)
	assert.NoError(t, res.L2Reverse)

	_, ok := res.Tx(StepReverseResolution)
	assert.False(t, ok)
	_, ok = res.Tx(StepL2ForwardResolution)
	assert.True(t, ok)
	_, ok = res.Tx(StepL2ReverseResolution)
	assert.True(t, ok)
	assert.Equal(t, testName, f.w2.l2Names[contract])
}

func TestRun_L2AfterUnclassifiedL1(t *testing.T) {
	f := newFixture(t, true)
	f.w2.owners[contract] = wallet

	res := f.run(t)
	assert.ErrorIs(t, res.Reverse, ErrUnclassifiedContract)
	_, ok := res.Tx(StepL2ForwardResolution)
	assert.True(t, ok)
	_, ok = res.Tx(StepL2ReverseResolution)
	assert.True(t, ok)
}

func TestRun_ContractWithoutCode(t *testing.T) {
	f := newFixture(t, false)
	f.w1.noCode[contract] = true
	f.w1.owners[contract] = wallet

	res := f.run(t)
	assert.Equal(t, Unknown, res.ContractType)
	assert.ErrorIs(t, res.Reverse, ErrUnclassifiedContract)
	assert.NotContains(t, f.l1.calls, write{contract, "owner"})
}

func TestRun_L2RegistrarWithoutQuery(t *testing.T) {
	f := newFixture(t, true)
	f.w1.owners[contract] = wallet
	f.w2.owners[contract] = wallet
	f.w2.noL2Query = true

	res := f.run(t)
	_, ok := res.Tx(StepL2ReverseResolution)
	assert.True(t, ok)
}

func TestRun_RevertedWriteIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet
	f.l1.revertWrite = "setAddr"

	res, err := f.engine.Run(context.Background(), f.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, conn.ErrCallReverted)
	require.NotNil(t, res)
	_, ok := res.Tx(StepSubname)
	assert.True(t, ok)
	assert.False(t, f.l1.called("owner"))
}

func TestRun_ProbeConnectionFailureIsFatal(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet
	f.l1.failCall = "owner"

	_, err := f.engine.Run(context.Background(), f.request())
	require.Error(t, err)
	assert.NotErrorIs(t, err, conn.ErrCallReverted)
	assert.NotContains(t, methods(f.l1.Writes()), "setNameForAddr")
}

func TestRun_MetricsFailureIgnored(t *testing.T) {
	f := newFixture(t, false)
	f.w1.owners[contract] = wallet
	f.reporter.err = errors.New("metrics endpoint down")

	res := f.run(t)
	assert.Equal(t, 3, res.Writes())
	assert.Len(t, f.reporter.events, 3)
}

func TestRun_Validation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, false)
	req := f.request()
	req.Name = "nodots"
	_, err := f.engine.Run(ctx, req)
	assert.ErrorIs(t, err, ens.ErrInvalidNameFormat)

	for _, name := range []string{"Test.example.eth", "a..eth", " test.example.eth"} {
		req = f.request()
		req.Name = name
		_, err = f.engine.Run(ctx, req)
		assert.ErrorIs(t, err, ens.ErrInvalidNameFormat, name)
	}

	req = f.request()
	req.Contract = "0x1234"
	_, err = f.engine.Run(ctx, req)
	assert.ErrorIs(t, err, ens.ErrInvalidAddress)

	req = f.request()
	req.Contract = "  "
	_, err = f.engine.Run(ctx, req)
	assert.ErrorIs(t, err, ens.ErrInvalidAddress)

	f.l1.id = 1
	_, err = f.engine.Run(ctx, f.request())
	assert.ErrorIs(t, err, ErrChainMismatch)
	f.l1.id = f.l1Profile.ChainID

	req = f.request()
	req.L2 = &Target{Profile: f.l2Profile}
	_, err = f.engine.Run(ctx, req)
	assert.ErrorIs(t, err, ErrMissingL2Connection)

	req = f.request()
	req.L1.Profile.PublicResolver = ""
	_, err = f.engine.Run(ctx, req)
	assert.ErrorIs(t, err, ErrMissingCapability)

	assert.Empty(t, f.l1.calls)
}

func TestDeployment(t *testing.T) {
	p, err := chain.GetProfile(chain.Base)
	require.NoError(t, err)
	d, err := NewDeployment(p)
	require.NoError(t, err)
	assert.False(t, d.HasNameWrapper)
	assert.True(t, d.HasReverseRegistrar)

	sep, err := chain.GetProfile(chain.Sepolia)
	require.NoError(t, err)
	_, err = NewL2Deployment(sep)
	assert.ErrorIs(t, err, ErrMissingCapability)
}
