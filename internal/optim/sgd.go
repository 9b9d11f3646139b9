package optim

import (
	"github.com/born-ml/remat/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step. Parameters with no gradient are
// skipped.
func (s *SGD) Step() {
	for _, param := range s.params {
		data, grad, ok := values(param)
		if !ok {
			continue
		}
		update := grad
		if s.momentum != 0 {
			velocity, exists := s.velocities[param]
			if !exists {
				velocity = make([]float64, len(data))
				s.velocities[param] = velocity
			}
			for i, g := range grad {
				velocity[i] = s.momentum*velocity[i] + g
			}
			update = velocity
		}
		for i := range data {
			data[i] -= s.lr * update[i]
		}
		store(param, data)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrads(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// StateDict exports the velocity buffers keyed "velocity.{param_index}".
// Without momentum it is empty.
func (s *SGD) StateDict() map[string][]float64 {
	state := make(map[string][]float64)
	if s.momentum == 0 {
		return state
	}
	for i, param := range s.params {
		if velocity, ok := s.velocities[param]; ok {
			state[stateKey("velocity", i)] = append([]float64(nil), velocity...)
		}
	}
	return state
}

// LoadStateDict restores velocity buffers exported by StateDict.
func (s *SGD) LoadStateDict(state map[string][]float64) error {
	if s.momentum == 0 {
		return nil
	}
	velocities := make(map[*nn.Parameter][]float64)
	for i, param := range s.params {
		velocity, ok, err := loadBuffer(state, "velocity", i, param)
		if err != nil {
			return err
		}
		if ok {
			velocities[param] = velocity
		}
	}
	s.velocities = velocities
	return nil
}
