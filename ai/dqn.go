package ai

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"snake-game/game"
	"snake-game/game/types"

	"golang.org/x/exp/rand"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network shape and replay settings for the DQN pilot.
const (
	InputFeatures    = 8 // food Up/Down/Left/Right, then danger in the same order
	OutputActions    = 4 // one value per types.Direction
	HiddenLayerSize  = 12
	BatchSize        = 32
	ReplayBufferSize = 5000
	GradientClip     = 0.5
	TargetTau        = 0.01 // share of the online weights blended into the target per batch
)

// Features turns an observation into the network input.
func Features(s State) []float64 {
	f := make([]float64, InputFeatures)
	dx, dy := s.RelativeFoodDir[0], s.RelativeFoodDir[1]
	f[types.Up] = boolToFloat(dy < 0)
	f[types.Down] = boolToFloat(dy > 0)
	f[types.Left] = boolToFloat(dx < 0)
	f[types.Right] = boolToFloat(dx > 0)
	for _, d := range types.Directions {
		f[len(types.Directions)+int(d)] = boolToFloat(s.DangerDirs[d])
	}
	return f
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type Transition struct {
	State     []float64
	Action    types.Direction
	Reward    float64
	NextState []float64
	Done      bool
}

// ReplayBuffer keeps the most recent transitions, overwriting the oldest.
type ReplayBuffer struct {
	buffer   []Transition
	maxSize  int
	position int
}

func NewReplayBuffer(maxSize int) *ReplayBuffer {
	return &ReplayBuffer{
		buffer:  make([]Transition, 0, maxSize),
		maxSize: maxSize,
	}
}

func (rb *ReplayBuffer) Add(t Transition) {
	if len(rb.buffer) < rb.maxSize {
		rb.buffer = append(rb.buffer, t)
	} else {
		rb.buffer[rb.position] = t
	}
	rb.position = (rb.position + 1) % rb.maxSize
}

func (rb *ReplayBuffer) Len() int {
	return len(rb.buffer)
}

// Sample draws n transitions with replacement.
func (rb *ReplayBuffer) Sample(rng *rand.Rand, n int) []Transition {
	batch := make([]Transition, n)
	for i := range batch {
		batch[i] = rb.buffer[rng.Intn(len(rb.buffer))]
	}
	return batch
}

// network is a two layer perceptron compiled for a fixed batch size. Only a
// training network carries the loss and a solver.
type network struct {
	g              *gorgonia.ExprGraph
	x              *gorgonia.Node
	w1, b1, w2, b2 *gorgonia.Node
	pred           *gorgonia.Node
	batch          int
	vm             gorgonia.VM

	y, mask *gorgonia.Node
	loss    *gorgonia.Node
	solver  gorgonia.Solver
}

func newNetwork(batch int, train bool, learningRate float64) (*network, error) {
	g := gorgonia.NewGraph()
	n := &network{g: g, batch: batch}

	matrix := func(name string, rows, cols int, opts ...gorgonia.NodeConsOpt) *gorgonia.Node {
		opts = append(opts, gorgonia.WithShape(rows, cols), gorgonia.WithName(name))
		return gorgonia.NewMatrix(g, tensor.Float64, opts...)
	}

	n.x = matrix("x", batch, InputFeatures)
	n.w1 = matrix("w1", InputFeatures, HiddenLayerSize, gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	n.b1 = matrix("b1", 1, HiddenLayerSize, gorgonia.WithInit(gorgonia.Zeroes()))
	n.w2 = matrix("w2", HiddenLayerSize, OutputActions, gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	n.b2 = matrix("b2", 1, OutputActions, gorgonia.WithInit(gorgonia.Zeroes()))
	// ones spreads a bias row over the whole batch
	ones := matrix("ones", batch, 1, gorgonia.WithValue(tensor.Ones(tensor.Float64, batch, 1)))

	hidden := gorgonia.Must(gorgonia.Add(
		gorgonia.Must(gorgonia.Mul(n.x, n.w1)),
		gorgonia.Must(gorgonia.Mul(ones, n.b1))))
	hidden = gorgonia.Must(gorgonia.Rectify(hidden))
	n.pred = gorgonia.Must(gorgonia.Add(
		gorgonia.Must(gorgonia.Mul(hidden, n.w2)),
		gorgonia.Must(gorgonia.Mul(ones, n.b2))))

	if !train {
		n.vm = gorgonia.NewTapeMachine(g)
		return n, nil
	}

	// only the taken action contributes to the loss
	n.y = matrix("y", batch, OutputActions)
	n.mask = matrix("mask", batch, OutputActions)
	diff := gorgonia.Must(gorgonia.HadamardProd(gorgonia.Must(gorgonia.Sub(n.pred, n.y)), n.mask))
	n.loss = gorgonia.Must(gorgonia.Mean(gorgonia.Must(gorgonia.Square(diff))))

	if _, err := gorgonia.Grad(n.loss, n.learnables()...); err != nil {
		return nil, fmt.Errorf("building gradients: %w", err)
	}
	n.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(n.learnables()...))
	n.solver = gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(learningRate),
		gorgonia.WithL2Reg(1e-6),
		gorgonia.WithClip(GradientClip))
	return n, nil
}

func (n *network) learnables() gorgonia.Nodes {
	return gorgonia.Nodes{n.w1, n.b1, n.w2, n.b2}
}

// batchTensor packs rows into a batch sized tensor, zero padding the rest.
func batchTensor(rows [][]float64, batch, width int) tensor.Tensor {
	backing := make([]float64, batch*width)
	for i, row := range rows {
		copy(backing[i*width:(i+1)*width], row)
	}
	return tensor.New(tensor.WithShape(batch, width), tensor.WithBacking(backing))
}

// forward returns the action values for up to batch states.
func (n *network) forward(states [][]float64) ([][]float64, error) {
	if len(states) > n.batch {
		return nil, fmt.Errorf("forward pass of %d states on a network built for %d", len(states), n.batch)
	}
	if err := gorgonia.Let(n.x, batchTensor(states, n.batch, InputFeatures)); err != nil {
		return nil, fmt.Errorf("binding states: %w", err)
	}
	defer n.vm.Reset()
	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}

	data := n.pred.Value().Data().([]float64)
	out := make([][]float64, len(states))
	for i := range out {
		out[i] = append([]float64(nil), data[i*OutputActions:(i+1)*OutputActions]...)
	}
	return out, nil
}

// train runs one Adam step towards targets where mask is set and returns
// the loss before the step.
func (n *network) train(states [][]float64, targets, mask []float64) (float64, error) {
	if n.solver == nil {
		return 0, errors.New("network was not built for training")
	}
	if err := gorgonia.Let(n.x, batchTensor(states, n.batch, InputFeatures)); err != nil {
		return 0, fmt.Errorf("binding states: %w", err)
	}
	if err := gorgonia.Let(n.y, tensor.New(tensor.WithShape(n.batch, OutputActions), tensor.WithBacking(targets))); err != nil {
		return 0, fmt.Errorf("binding targets: %w", err)
	}
	if err := gorgonia.Let(n.mask, tensor.New(tensor.WithShape(n.batch, OutputActions), tensor.WithBacking(mask))); err != nil {
		return 0, fmt.Errorf("binding mask: %w", err)
	}
	defer n.vm.Reset()
	if err := n.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("training pass: %w", err)
	}
	if err := n.solver.Step(gorgonia.NodesToValueGrads(n.learnables())); err != nil {
		return 0, fmt.Errorf("solver step: %w", err)
	}
	return scalar(n.loss.Value()), nil
}

func scalar(v gorgonia.Value) float64 {
	switch d := v.Data().(type) {
	case float64:
		return d
	case []float64:
		if len(d) > 0 {
			return d[0]
		}
	}
	return math.NaN()
}

func nodeData(n *gorgonia.Node) []float64 {
	return n.Value().Data().([]float64)
}

// weights copies the learnable values out, keyed by node name.
func (n *network) weights() map[string][]float64 {
	out := make(map[string][]float64, 4)
	for _, node := range n.learnables() {
		out[node.Name()] = append([]float64(nil), nodeData(node)...)
	}
	return out
}

func (n *network) setWeights(w map[string][]float64) error {
	for _, node := range n.learnables() {
		src, ok := w[node.Name()]
		dst := nodeData(node)
		if !ok || len(src) != len(dst) {
			return fmt.Errorf("weights for %s: want %d values, got %d", node.Name(), len(dst), len(src))
		}
	}
	for _, node := range n.learnables() {
		copy(nodeData(node), w[node.Name()])
	}
	return nil
}

// blend moves dst towards src: dst = tau*src + (1-tau)*dst.
func blend(dst, src *network, tau float64) {
	from := src.learnables()
	for i, node := range dst.learnables() {
		to, in := nodeData(node), nodeData(from[i])
		for j := range to {
			to[j] = tau*in[j] + (1-tau)*to[j]
		}
	}
}

// DQNAgent approximates the action values with a small neural network
// trained from a replay buffer. It is safe for concurrent use.
type DQNAgent struct {
	Discount     float64
	Epsilon      float64
	MinEpsilon   float64
	EpsilonDecay float64
	TotalReward  float64
	GamesPlayed  int
	TrainSteps   int
	LastLoss     float64

	rng    *rand.Rand
	mu     sync.Mutex
	memory *ReplayBuffer
	online *network // trained on sampled batches
	policy *network // single state copy of online used by Decide
	target *network // trails online, estimates next state values

	pending      bool
	lastState    State
	lastFeatures []float64
	lastAction   types.Direction
	lastScore    int
}

// NewDQNAgent builds the networks. p.LearningRate is the Adam step size. A
// nil rng is seeded from 1.
func NewDQNAgent(p Params, rng *rand.Rand) (*DQNAgent, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	online, err := newNetwork(BatchSize, true, p.LearningRate)
	if err != nil {
		return nil, fmt.Errorf("building online network: %w", err)
	}
	policy, err := newNetwork(1, false, 0)
	if err != nil {
		return nil, fmt.Errorf("building policy network: %w", err)
	}
	target, err := newNetwork(BatchSize, false, 0)
	if err != nil {
		return nil, fmt.Errorf("building target network: %w", err)
	}
	blend(policy, online, 1)
	blend(target, online, 1)

	return &DQNAgent{
		Discount:     p.Discount,
		Epsilon:      p.Epsilon,
		MinEpsilon:   p.MinEpsilon,
		EpsilonDecay: p.EpsilonDecay,
		rng:          rng,
		memory:       NewReplayBuffer(ReplayBufferSize),
		online:       online,
		policy:       policy,
		target:       target,
	}, nil
}

// Decide picks the next heading for g. Turning back onto the neck is never
// chosen.
func (a *DQNAgent) Decide(g *game.Game) types.Direction {
	state := Observe(g)
	features := Features(state)
	candidates := candidateMoves(g)

	a.mu.Lock()
	defer a.mu.Unlock()

	var action types.Direction
	if a.rng.Float64() < a.Epsilon {
		action = candidates[a.rng.Intn(len(candidates))]
	} else if q, err := a.policy.forward([][]float64{features}); err != nil {
		action = candidates[a.rng.Intn(len(candidates))]
	} else {
		action = bestOf(q[0], candidates)
	}

	a.pending = true
	a.lastState = state
	a.lastFeatures = features
	a.lastAction = action
	a.lastScore = g.Score()
	return action
}

// bestOf breaks ties in declaration order.
func bestOf(values []float64, candidates []types.Direction) types.Direction {
	best := candidates[0]
	for _, d := range candidates[1:] {
		if values[d] > values[best] {
			best = d
		}
	}
	return best
}

// Learn stores the last decision in the replay buffer and, once a full
// batch is available, trains on a random sample. Without a preceding Decide
// it does nothing.
func (a *DQNAgent) Learn(g *game.Game, outcome types.Outcome) float64 {
	next := Observe(g)
	score := g.Score()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.pending {
		return 0
	}
	a.pending = false
	ate := score > a.lastScore

	r := reward(a.lastState.FoodDistance, next.FoodDistance, ate, outcome)
	a.memory.Add(Transition{
		State:     a.lastFeatures,
		Action:    a.lastAction,
		Reward:    r,
		NextState: Features(next),
		Done:      outcome != types.OutcomeNone,
	})
	if a.memory.Len() >= BatchSize {
		if loss, err := a.trainOnBatch(); err == nil {
			a.TrainSteps++
			a.LastLoss = loss
		}
	}

	a.TotalReward += r
	if outcome != types.OutcomeNone {
		a.GamesPlayed++
		if a.EpsilonDecay > 0 {
			a.Epsilon = max(a.MinEpsilon, a.Epsilon*a.EpsilonDecay)
		}
	}
	return r
}

func (a *DQNAgent) trainOnBatch() (float64, error) {
	batch := a.memory.Sample(a.rng, BatchSize)
	states := make([][]float64, len(batch))
	nextStates := make([][]float64, len(batch))
	for i, t := range batch {
		states[i] = t.State
		nextStates[i] = t.NextState
	}

	nextQ, err := a.target.forward(nextStates)
	if err != nil {
		return 0, err
	}

	targets := make([]float64, BatchSize*OutputActions)
	mask := make([]float64, BatchSize*OutputActions)
	for i, t := range batch {
		y := t.Reward
		if !t.Done {
			y += a.Discount * maxOf(nextQ[i])
		}
		idx := i*OutputActions + int(t.Action)
		targets[idx] = y
		mask[idx] = 1
	}

	loss, err := a.online.train(states, targets, mask)
	if err != nil {
		return 0, err
	}
	blend(a.policy, a.online, 1)
	blend(a.target, a.online, TargetTau)
	return loss, nil
}

func maxOf(values []float64) float64 {
	best := math.Inf(-1)
	for _, v := range values {
		best = max(best, v)
	}
	return best
}

// BufferLen reports how many transitions are stored.
func (a *DQNAgent) BufferLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.memory.Len()
}

// SaveWeights writes the online network with encoding/gob, creating the
// directory if needed.
func (a *DQNAgent) SaveWeights(filename string) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating weights directory: %w", err)
		}
	}

	a.mu.Lock()
	weights := a.online.weights()
	a.mu.Unlock()

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating weights file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(weights); err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	return file.Close()
}

// LoadWeights replaces every network's weights with the ones in filename.
func (a *DQNAgent) LoadWeights(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("opening weights: %w", err)
	}
	defer file.Close()

	var weights map[string][]float64
	if err := gob.NewDecoder(file).Decode(&weights); err != nil {
		return fmt.Errorf("decoding weights %s: %w", filename, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.online.setWeights(weights); err != nil {
		return fmt.Errorf("loading %s: %w", filename, err)
	}
	blend(a.policy, a.online, 1)
	blend(a.target, a.online, 1)
	return nil
}
