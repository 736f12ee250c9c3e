package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// newMalgoOpener initializes a malgo context and returns an Opener for the
// default capture device. release frees the context.
func newMalgoOpener(sampleRate uint32) (Opener, func() error, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, &DeviceError{Op: "initialize", Err: err}
	}

	open := func(onData DataFunc, onStop func()) (Stream, error) {
		deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
		deviceCfg.Capture.Format = malgo.FormatF32
		deviceCfg.Capture.Channels = 1
		deviceCfg.SampleRate = sampleRate

		callbacks := malgo.DeviceCallbacks{
			Data: malgo.DataProc(onData),
			Stop: onStop,
		}

		device, err := malgo.InitDevice(ctx.Context, deviceCfg, callbacks)
		if err != nil {
			return nil, fmt.Errorf("initializing capture device: %w", err)
		}
		return &malgoStream{device: device}, nil
	}

	release := func() error {
		if err := ctx.Uninit(); err != nil {
			return err
		}
		ctx.Free()
		return nil
	}

	return open, release, nil
}

// malgoStream adapts a malgo capture device to Stream.
type malgoStream struct {
	device *malgo.Device
}

func (s *malgoStream) Start() error {
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.device.Uninit()
	return nil
}
