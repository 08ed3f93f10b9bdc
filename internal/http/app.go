package httpapi

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Kluncker/rockville-cg-app/internal/lifecycle"
	"github.com/Kluncker/rockville-cg-app/internal/reminders"
	"github.com/Kluncker/rockville-cg-app/internal/store"
	"github.com/Kluncker/rockville-cg-app/internal/tokens"
)

type App struct {
	Store     store.Store
	Lifecycle *lifecycle.Manager
	Tokens    *tokens.Service
	Reminders *reminders.Scheduler
	JWTSecret []byte
	Log       logrus.FieldLogger

	validateOnce sync.Once
	validate     *validator.Validate
}

func (a *App) validator() *validator.Validate {
	a.validateOnce.Do(func() {
		v := validator.New()
		// report json names in errors
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		a.validate = v
	})
	return a.validate
}

func (a *App) logger() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}
