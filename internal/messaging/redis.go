package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"maneuver-service/internal/logger"
	"maneuver-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// Redis keys and channels.
const (
	CommandList      = "maneuver:command"
	RunHash          = "maneuver"
	RunChannel       = "maneuver"
	RunEventStream   = "events:maneuvers"
	DashboardHash    = "maneuver:dashboard"
	DashboardChannel = "maneuver:dashboard"
	VisionChannel    = "vision"
	SpeechList       = "speech"
)

// BearingMaxAge is how long a published vision bearing stays valid.
const BearingMaxAge = 500 * time.Millisecond

// SpeechQueueSize bounds the sentences waiting for the speech writer.
const SpeechQueueSize = 16

// ErrSpeechQueueFull is returned by Speak when the writer is behind.
var ErrSpeechQueueFull = errors.New("speech queue full")

type Callbacks struct {
	StartCallback func(test types.Test) error // "start" or "start:<test>"
	AbortCallback func() error
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.Mutex
	lines     map[int]string
	dirty     map[int]bool
	bearing   float64
	bearingAt time.Time
	now       func() time.Time

	// Writes issued from the control loop are handed to writer goroutines
	// once listening has started.
	writing bool
	speech  chan string
	flushes chan struct{}
}

func NewRedisClient(host string, port int, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		logger:  l,
		ctx:     ctx,
		cancel:  cancel,
		lines:   make(map[int]string),
		dirty:   make(map[int]bool),
		now:     time.Now,
		speech:  make(chan string, SpeechQueueSize),
		flushes: make(chan struct{}, 1),
	}
}

func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Infof("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the command and vision listeners.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, VisionChannel)
	r.logger.Infof("Subscribed to Redis channels: %s", VisionChannel)

	r.wg.Add(4)
	go r.redisListener(pubsub)
	go r.listCommandListener(CommandList, r.handleManeuverCommand)
	go r.speechWriter()
	go r.dashboardWriter()

	r.mu.Lock()
	r.writing = true
	r.mu.Unlock()

	return nil
}

// speechWriter pushes queued sentences to the speech list.
func (r *RedisClient) speechWriter() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case sentence := <-r.speech:
			r.SendCommand(SpeechList, sentence)
		}
	}
}

// dashboardWriter flushes the dashboard whenever a flush was requested.
func (r *RedisClient) dashboardWriter() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushes:
			r.flushDashboard()
		}
	}
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short BRPOP timeout so cancellation is noticed.
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Infof("Error reading from %s list: %v", key, err)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

// ParseCommand splits a maneuver command into its verb and test. The test
// is empty when the command does not name one.
func ParseCommand(value string) (verb string, test types.Test, err error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(value), ":")
	switch verb {
	case "start":
		if arg == "" {
			return verb, "", nil
		}
		test, err = types.ParseTest(arg)
		if err != nil {
			return "", "", err
		}
		return verb, test, nil
	case "abort":
		return verb, "", nil
	default:
		return "", "", fmt.Errorf("invalid maneuver command: %s", value)
	}
}

func (r *RedisClient) handleManeuverCommand(value string) error {
	verb, test, err := ParseCommand(value)
	if err != nil {
		r.logger.Infof("Invalid maneuver command value: %s", value)
		return err
	}
	switch verb {
	case "start":
		if r.callbacks.StartCallback != nil {
			return r.callbacks.StartCallback(test)
		}
	case "abort":
		if r.callbacks.AbortCallback != nil {
			return r.callbacks.AbortCallback()
		}
	}
	return nil
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Warnf("Redis channel closed unexpectedly")
				return
			}

			switch msg.Channel {
			case VisionChannel:
				r.handleVisionMessage(msg.Payload)
			}
		}
	}
}

// handleVisionMessage records a bearing in degrees. "lost" invalidates the
// current one.
func (r *RedisClient) handleVisionMessage(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payload == "lost" {
		r.bearingAt = time.Time{}
		return
	}
	var bearing float64
	if _, err := fmt.Sscanf(payload, "%g", &bearing); err != nil {
		r.logger.Debugf("Invalid vision payload: %s", payload)
		return
	}
	r.bearing = bearing
	r.bearingAt = r.now()
}

// Bearing returns the latest vision bearing and whether it is still fresh.
func (r *RedisClient) Bearing() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bearingAt.IsZero() || r.now().Sub(r.bearingAt) > BearingMaxAge {
		return r.bearing, false
	}
	return r.bearing, true
}

// DisplayPrintf buffers one dashboard line until the next FlushDashboard.
func (r *RedisClient) DisplayPrintf(line int, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines[line] == text {
		return
	}
	r.lines[line] = text
	r.dirty[line] = true
}

// ClearDashboard blanks every buffered line.
func (r *RedisClient) ClearDashboard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for line := range r.lines {
		r.lines[line] = ""
		r.dirty[line] = true
	}
}

// pendingLines returns and clears the changed lines in line order.
func (r *RedisClient) pendingLines() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]int, 0, len(r.dirty))
	for line := range r.dirty {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	r.dirty = make(map[int]bool)
	return lines
}

// FlushDashboard requests that changed lines be written. Once listening it
// only signals the dashboard writer; requests made while a write is pending
// coalesce into it. Before that it writes directly.
func (r *RedisClient) FlushDashboard() error {
	r.mu.Lock()
	writing := r.writing
	r.mu.Unlock()
	if !writing {
		return r.flushDashboard()
	}
	select {
	case r.flushes <- struct{}{}:
	default:
	}
	return nil
}

// flushDashboard writes changed lines to the dashboard hash and notifies
// subscribers once.
func (r *RedisClient) flushDashboard() error {
	lines := r.pendingLines()
	if len(lines) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	r.mu.Lock()
	for _, line := range lines {
		pipe.HSet(r.ctx, DashboardHash, fmt.Sprintf("line:%d", line), r.lines[line])
	}
	r.mu.Unlock()
	pipe.Publish(r.ctx, DashboardChannel, "update")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Debugf("Failed to flush dashboard: %v", err)
		return err
	}
	return nil
}

// Speak queues a sentence for the speech service without waiting on Redis.
func (r *RedisClient) Speak(sentence string) error {
	select {
	case r.speech <- sentence:
		return nil
	default:
		r.logger.Warnf("Dropping sentence %q: %v", sentence, ErrSpeechQueueFull)
		return ErrSpeechQueueFull
	}
}

func (r *RedisClient) PublishRunState(test types.Test, state types.RunState, runID string) error {
	r.logger.Infof("Publishing run state: %s %s", test, state)
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, RunHash, "test", string(test))
	pipe.HSet(r.ctx, RunHash, "state", string(state))
	pipe.HSet(r.ctx, RunHash, "run-id", runID)
	pipe.HSet(r.ctx, RunHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, RunChannel, "state")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish run state: %v", err)
		return err
	}
	return nil
}

// PublishRunResult appends a finished run to the maneuver event stream.
func (r *RedisClient) PublishRunResult(runID string, test types.Test, state types.RunState, info string) error {
	values := map[string]interface{}{
		"run-id": runID,
		"test":   string(test),
		"result": string(state),
		"ts":     time.Now().Unix(),
	}
	if info != "" {
		values["info"] = info
	}

	pipe := r.client.Pipeline()
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: RunEventStream,
		MaxLen: 1000,
		Values: values,
	})
	pipe.Publish(r.ctx, RunChannel, "result")
	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Warnf("Failed to publish run result: %v", err)
		return err
	}
	return nil
}

// SendCommand pushes a command onto a list served by another service.
func (r *RedisClient) SendCommand(list, command string) error {
	if err := r.client.LPush(r.ctx, list, command).Err(); err != nil {
		r.logger.Infof("Failed to send command '%s' to list '%s': %v", command, list, err)
		return err
	}
	r.logger.Debugf("Sent command '%s' to list '%s'", command, list)
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Infof("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
