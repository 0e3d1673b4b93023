package hardware

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"

	"maneuver-service/internal/logger"
	"maneuver-service/internal/types"
)

var ErrNoHeading = errors.New("no heading received")

type frameTransmitter interface {
	TransmitFrame(ctx context.Context, frame can.Frame) error
}

type frameReceiver interface {
	Receive() bool
	Frame() can.Frame
	Err() error
}

// CANBus talks to the wheel motor controllers and the IMU. Encoder and
// heading frames are cached by a background receive loop; motor commands
// are transmitted synchronously.
type CANBus struct {
	logger *logger.Logger
	conn   net.Conn
	tx     frameTransmitter
	rx     frameReceiver
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.RWMutex
	positions    [types.NumWheels]float64
	heading      float64
	headingValid bool
	frames       uint64
}

// DialCANBus opens a SocketCAN interface such as "can0".
func DialCANBus(ctx context.Context, iface string, l *logger.Logger) (*CANBus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	b := newCANBus(l, socketcan.NewTransmitter(conn), socketcan.NewReceiver(conn))
	b.conn = conn
	return b, nil
}

func newCANBus(l *logger.Logger, tx frameTransmitter, rx frameReceiver) *CANBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &CANBus{
		logger: l.WithTag("CAN"),
		tx:     tx,
		rx:     rx,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the receive loop until Close.
func (b *CANBus) Start() {
	b.wg.Add(1)
	go b.receiveLoop()
}

func (b *CANBus) receiveLoop() {
	defer b.wg.Done()
	b.logger.Infof("Starting CAN receive loop")

	for b.rx.Receive() {
		b.handleFrame(b.rx.Frame())
	}

	select {
	case <-b.ctx.Done():
		b.logger.Infof("CAN receive loop stopped")
	default:
		if err := b.rx.Err(); err != nil {
			b.logger.Errorf("CAN receive failed: %v", err)
		}
	}
}

func (b *CANBus) handleFrame(f can.Frame) {
	switch {
	case f.ID >= EncoderFeedbackBaseID && f.ID < EncoderFeedbackBaseID+types.NumWheels:
		if f.Length < 4 {
			b.logger.Debugf("Short encoder frame 0x%03x", f.ID)
			return
		}
		count := int32(binary.LittleEndian.Uint32(f.Data[0:4]))
		b.mu.Lock()
		b.positions[f.ID-EncoderFeedbackBaseID] = float64(count)
		b.frames++
		b.mu.Unlock()

	case f.ID == IMUHeadingID:
		if f.Length < 2 {
			b.logger.Debugf("Short heading frame")
			return
		}
		centi := int16(binary.LittleEndian.Uint16(f.Data[0:2]))
		b.mu.Lock()
		b.heading = float64(centi) / 100
		b.headingValid = true
		b.frames++
		b.mu.Unlock()
	}
}

// EncodePowerFrame builds the command frame for one wheel. Power is
// clamped to [-1, 1] and sent as a signed 16 bit fraction.
func EncodePowerFrame(w types.Wheel, power float64) can.Frame {
	f := can.Frame{
		ID:     MotorCommandBaseID + uint32(w),
		Length: 2,
	}
	raw := int16(math.Round(clampPower(power) * powerScale))
	binary.LittleEndian.PutUint16(f.Data[0:2], uint16(raw))
	return f
}

func (b *CANBus) setPower(w types.Wheel, power float64) error {
	if err := b.tx.TransmitFrame(b.ctx, EncodePowerFrame(w, power)); err != nil {
		return fmt.Errorf("transmit %s power: %w", w, err)
	}
	return nil
}

func (b *CANBus) position(w types.Wheel) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.positions[w]
}

// Motor returns the wheel motor on this bus.
func (b *CANBus) Motor(w types.Wheel) Motor {
	return &canMotor{bus: b, wheel: w}
}

// Motors returns all four wheel motors in wheel order.
func (b *CANBus) Motors() [types.NumWheels]Motor {
	var m [types.NumWheels]Motor
	for i := range m {
		m[i] = b.Motor(types.Wheel(i))
	}
	return m
}

// Heading implements Gyro from the IMU frames.
func (b *CANBus) Heading() (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.headingValid {
		return 0, ErrNoHeading
	}
	return b.heading, nil
}

func (b *CANBus) FrameCount() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frames
}

func (b *CANBus) Close() error {
	b.cancel()
	var err error
	if b.conn != nil {
		err = b.conn.Close()
	}
	b.wg.Wait()
	return err
}

type canMotor struct {
	bus   *CANBus
	wheel types.Wheel
}

func (m *canMotor) SetPower(power float64) error {
	return m.bus.setPower(m.wheel, power)
}

func (m *canMotor) Position() float64 {
	return m.bus.position(m.wheel)
}
