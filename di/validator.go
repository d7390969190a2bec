package di

import "github.com/gocrud/compose/logging"

// validate 依次试解析每个描述符（包括被后注册覆盖的那些），
// 每次使用独立的解析上下文，收集全部失败而不是遇错即停。
func (p *Provider) validate() error {
	var failures []ValidationFailure

	for _, reg := range p.registrations {
		if err := p.validateOne(reg); err != nil {
			d := reg.descriptor
			failures = append(failures, ValidationFailure{
				ServiceType: d.ServiceType,
				Lifetime:    d.Lifetime,
				Err:         err,
			})
			p.logger.Warn("di: service failed validation",
				logging.Field{Key: "service", Value: d.ServiceType.String()},
				logging.Field{Key: "lifetime", Value: d.Lifetime.String()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	if len(failures) > 0 {
		return &AggregateValidationError{Failures: failures}
	}
	return nil
}

func (p *Provider) validateOne(reg *registration) error {
	r, err := p.begin("validate")
	if err != nil {
		return err
	}
	defer p.end(r)
	_, err = r.resolve(reg)
	return err
}
