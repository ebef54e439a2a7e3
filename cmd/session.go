// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/shadestat/pkg/resetline"
	"github.com/Thermoquad/shadestat/pkg/shade"
	"go.uber.org/zap"
)

// session bundles everything a command needs to talk to the motor
type session struct {
	logger    *zap.Logger
	conn      Connection
	connInfo  string
	transport *shade.StreamTransport
	gpio      *resetline.GPIO
	driver    *shade.Driver
}

// openSession builds the logger, connection, reset line and driver from
// the current settings. Close must be called on success.
func openSession() (*session, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	return openSessionWithLogger(logger)
}

// openQuietSession is openSession without log output, for commands that
// own the terminal
func openQuietSession() (*session, error) {
	return openSessionWithLogger(zap.NewNop())
}

func openSessionWithLogger(logger *zap.Logger) (*session, error) {
	cfg, err := loadDriverConfig(settings)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	conn, connInfo, err := OpenConnection(loadConnectionSettings(settings), logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	s := &session{
		logger:    logger,
		conn:      conn,
		connInfo:  connInfo,
		transport: shade.NewStreamTransport(conn),
	}

	var line shade.ResetLine
	if pin := settings.GetInt("reset.pin"); pin > 0 {
		gpio, err := resetline.OpenGPIO(pin, logger)
		if err != nil {
			logger.Warn("Reset line unavailable, watchdog will only log", zap.Int("pin", pin), zap.Error(err))
			line = resetline.NewLog(logger)
		} else {
			s.gpio = gpio
			line = gpio
		}
	} else {
		line = resetline.NewLog(logger)
	}

	s.driver, err = shade.NewDriver(cfg, s.transport, line, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection and reset line
func (s *session) Close() {
	if s.gpio != nil {
		if err := s.gpio.Close(); err != nil {
			s.logger.Warn("Failed to release reset line", zap.Error(err))
		}
	}
	s.conn.Close()
	s.logger.Sync()
}
