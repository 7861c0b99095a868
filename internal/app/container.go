package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned once the container has stopped.
var ErrClosed = errors.New("app: container closed")

type envelope struct {
	action Action
	done   chan struct{}
}

// Container owns a State and applies actions to it one at a time, in arrival order.
// It runs dispatches for callers without a UI loop of their own (the CLI commands).
type Container struct {
	log     *zap.Logger
	timeout time.Duration
	observe func(Action, State)

	queue chan envelope
	quit  chan struct{}
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state State
	subs  map[int]chan struct{}
	next  int

	// runMu orders wg.Add in Run against wg.Wait in Close.
	runMu     sync.Mutex
	closing   bool
	closeOnce sync.Once
}

type ContainerOption func(*Container)

func WithContainerLogger(l *zap.Logger) ContainerOption {
	return func(c *Container) {
		if l != nil {
			c.log = l
		}
	}
}

// WithActionObserver registers fn to run on the apply loop after each action is reduced.
// fn must not call back into the container.
func WithActionObserver(fn func(Action, State)) ContainerOption {
	return func(c *Container) { c.observe = fn }
}

// WithEffectTimeout bounds each effect; zero disables the bound.
func WithEffectTimeout(d time.Duration) ContainerOption {
	return func(c *Container) { c.timeout = d }
}

// NewContainer starts the apply loop over initial.
func NewContainer(initial State, opts ...ContainerOption) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		log:     zap.NewNop(),
		timeout: DefaultEffectTimeout,
		queue:   make(chan envelope, 64),
		quit:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		state:   initial,
		subs:    map[int]chan struct{}{},
	}
	for _, o := range opts {
		o(c)
	}
	go c.loop()
	return c
}

func (c *Container) loop() {
	for {
		select {
		case <-c.quit:
			return
		case env := <-c.queue:
			select {
			case <-c.quit:
				return
			default:
			}
			c.mu.Lock()
			c.state = Reduce(c.state, env.action)
			for _, ch := range c.subs {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
			next := c.state
			c.mu.Unlock()
			c.log.Debug("action applied", zap.String("type", env.action.Type()))
			if c.observe != nil {
				c.observe(env.action, next)
			}
			if env.done != nil {
				close(env.done)
			}
		}
	}
}

// State returns the current state. Callers must treat Notes as read-only.
func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Apply enqueues a and waits until it has been reduced.
func (c *Container) Apply(a Action) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	env := envelope{action: a, done: make(chan struct{})}
	select {
	case <-c.quit:
		return ErrClosed
	case c.queue <- env:
	}
	select {
	case <-c.quit:
		return ErrClosed
	case <-env.done:
		return nil
	}
}

// Run applies d.Now synchronously and starts d.Later in the background. The effect's
// action is applied whenever it completes, regardless of what happened in between.
func (c *Container) Run(d Dispatch) error {
	for _, a := range d.Now {
		if err := c.Apply(a); err != nil {
			return err
		}
	}
	if d.Later == nil {
		return nil
	}
	c.runMu.Lock()
	if c.closing {
		c.runMu.Unlock()
		return ErrClosed
	}
	c.wg.Add(1)
	c.runMu.Unlock()
	go func() {
		defer c.wg.Done()
		ctx := c.ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		a := d.Later(ctx)
		if a == nil {
			return
		}
		if err := c.Apply(a); err != nil {
			c.log.Debug("effect result dropped", zap.String("type", a.Type()), zap.Error(err))
		}
	}()
	return nil
}

// Subscribe returns a channel signalled after every applied action. Signals coalesce;
// read State for the latest value.
func (c *Container) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.mu.Unlock()
	return ch, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// WaitFor blocks until pred holds for the current state.
func (c *Container) WaitFor(ctx context.Context, pred func(State) bool) (State, error) {
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()
	for {
		s := c.State()
		if pred(s) {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-c.quit:
			return s, ErrClosed
		case <-ch:
		}
	}
}

// Close cancels running effects, waits for them and stops the loop.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		c.runMu.Lock()
		c.closing = true
		c.runMu.Unlock()
		c.cancel()
		c.wg.Wait()
		close(c.quit)
	})
}
