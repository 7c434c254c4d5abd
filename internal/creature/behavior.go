package creature

import "math"

// State поведение существа. Update возвращает следующее состояние
// (или себя, если переход не нужен).
type State interface {
	Name() string
	Enter(a *Agent)
	Update(a *Agent, dt float64) State
	Exit(a *Agent)
}

// setState меняет состояние с вызовом Exit/Enter
func (a *Agent) setState(s State) {
	if a.state != nil {
		a.state.Exit(a)
	}
	a.state = s
	if a.state != nil {
		a.state.Enter(a)
	}
}

// think один шаг конечного автомата
func (a *Agent) think(dt float64) {
	if a.state == nil {
		return
	}
	if next := a.state.Update(a, dt); next != a.state {
		a.setState(next)
	}
}

// === Конкретные состояния ===

// IdleState - состояние бездействия
type IdleState struct {
	TimeInState float64
	MaxIdleTime float64
}

func newIdleState(a *Agent) *IdleState {
	return &IdleState{MaxIdleTime: 2.0 + a.rng.Float64()*3.0} // 2-5 секунд
}

func (s *IdleState) Name() string { return "idle" }

func (s *IdleState) Enter(a *Agent) {
	s.TimeInState = 0
	a.throttle = 0
}

func (s *IdleState) Update(a *Agent, dt float64) State {
	s.TimeInState += dt
	if a.goal != nil {
		return &SeekState{}
	}
	if s.TimeInState >= s.MaxIdleTime {
		return newWanderState(a)
	}
	return s
}

func (s *IdleState) Exit(a *Agent) {}

// WanderState - блуждание с медленным случайным поворотом
type WanderState struct {
	TimeInState   float64
	MaxWanderTime float64
}

func newWanderState(a *Agent) *WanderState {
	return &WanderState{MaxWanderTime: 3.0 + a.rng.Float64()*5.0} // 3-8 секунд
}

func (s *WanderState) Name() string { return "wander" }

func (s *WanderState) Enter(a *Agent) {
	s.TimeInState = 0
	a.throttle = 1
}

func (s *WanderState) Update(a *Agent, dt float64) State {
	s.TimeInState += dt
	if a.goal != nil {
		return &SeekState{}
	}
	if s.TimeInState >= s.MaxWanderTime {
		return newIdleState(a)
	}
	a.heading += (a.rng.Float64()*2 - 1) * a.params.TurnRate * dt
	return s
}

func (s *WanderState) Exit(a *Agent) {}

// SeekState - движение к цели; по прибытии существо отдыхает
type SeekState struct{}

func (s *SeekState) Name() string { return "seek" }

func (s *SeekState) Enter(a *Agent) { a.throttle = 1 }

func (s *SeekState) Update(a *Agent, dt float64) State {
	if a.goal == nil {
		return newWanderState(a)
	}
	to := a.goal.Sub(a.center())
	if to.Len() < goalReached {
		a.goal = nil
		return newIdleState(a)
	}

	turn := a.params.TurnRate * dt * 4
	diff := math.Remainder(math.Atan2(to[1], to[0])-a.heading, 2*math.Pi)
	a.heading += max(-turn, min(turn, diff))
	return s
}

func (s *SeekState) Exit(a *Agent) {}
