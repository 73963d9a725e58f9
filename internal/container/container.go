package container

import (
	app "blister-inspector/internal/application"
	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

// Ports адаптеры, на которых собираются сервисы приложения
type Ports struct {
	Frames      port.FrameSource
	Params      port.ParamSource
	Detector    port.AlignmentDetector
	Classifier  port.Classifier
	Actuator    port.Actuator
	Notifier    port.Notifier
	Subscribers port.SubscriberRepository
}

// Container собирает сервисы приложения
type Container struct {
	Controller    *app.Controller
	Subscriptions *app.SubscriptionService
}

// New создаёт контейнер из адаптеров
func New(p Ports, timing entity.Timing) *Container {
	controller := app.NewController(p.Frames, p.Params, p.Detector, p.Classifier, p.Actuator, p.Notifier, timing)
	subscriptions := app.NewSubscriptionService(p.Subscribers)

	return &Container{
		Controller:    controller,
		Subscriptions: subscriptions,
	}
}
