// 包 prefs：界面偏好（主题、安装提示已关闭标记），以纯文本保存在持久化槽位
package prefs

import (
	"context"
	"errors"
	"fmt"

	"olive-mapper/internal/slot"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrInvalidTheme = errors.New("invalid theme")

type Prefs struct{ slot slot.Slot }

func New(s slot.Slot) *Prefs { return &Prefs{slot: s} }

// Theme：未设置或内容无法识别时返回 light
func (p *Prefs) Theme(ctx context.Context) (string, error) {
	b, err := p.slot.Load(ctx, slot.KeyTheme)
	if errors.Is(err, slot.ErrNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return ThemeLight, err
	}
	if string(b) == ThemeDark {
		return ThemeDark, nil
	}
	return ThemeLight, nil
}

func (p *Prefs) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return p.slot.Save(ctx, slot.KeyTheme, []byte(theme))
}

// ToggleTheme：切换并返回新主题
func (p *Prefs) ToggleTheme(ctx context.Context) (string, error) {
	cur, err := p.Theme(ctx)
	if err != nil {
		return cur, err
	}
	next := ThemeDark
	if cur == ThemeDark {
		next = ThemeLight
	}
	return next, p.SetTheme(ctx, next)
}

// InstallPromptDismissed：槽位中为 "true" 时视为已关闭
func (p *Prefs) InstallPromptDismissed(ctx context.Context) (bool, error) {
	b, err := p.slot.Load(ctx, slot.KeyInstallPromptDismissed)
	if errors.Is(err, slot.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return string(b) == "true", nil
}

func (p *Prefs) DismissInstallPrompt(ctx context.Context) error {
	return p.slot.Save(ctx, slot.KeyInstallPromptDismissed, []byte("true"))
}
