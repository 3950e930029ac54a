//go:build !linux

package hotkey

import (
	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
}

var keyCodes = map[Key]hotkey.Key{
	KeySpace: hotkey.KeySpace,
	KeyEnter: hotkey.KeyReturn,
	KeyJ:     hotkey.KeyJ,
	KeyF9:    hotkey.KeyF9,
	KeyF10:   hotkey.KeyF10,
	KeyF11:   hotkey.KeyF11,
	KeyF12:   hotkey.KeyF12,
}

func New(combo Combo) Hotkey {
	var mods []hotkey.Modifier
	if combo.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if combo.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	return &xHotkey{
		hk:      hotkey.New(mods, keyCodes[combo.Key]),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			<-h.hk.Keydown()
			h.keydown <- struct{}{}
		}
	}()
	go func() {
		for {
			<-h.hk.Keyup()
			h.keyup <- struct{}{}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose(combo Combo) (string, error) {
	return "hotkey support available (" + combo.String() + ")", nil
}
