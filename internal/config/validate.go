// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/citywatch-project/citywatch/internal/geo"
)

// validate is the shared struct validator. Struct tags catch per-field
// constraints; Validate adds the cross-field rules tags cannot express.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the loaded configuration is coherent.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateCities(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	return c.validateNATS()
}

// validateCities checks city declarations against known geography and
// feed shape requirements.
func (c *Config) validateCities() error {
	if len(c.Cities) == 0 {
		return fmt.Errorf("at least one city must be configured")
	}

	seenCities := make(map[string]struct{}, len(c.Cities))
	seenFeeds := make(map[string]struct{})

	for i := range c.Cities {
		city := &c.Cities[i]
		name := strings.ToLower(strings.TrimSpace(city.Name))
		if name == "" {
			return fmt.Errorf("cities[%d]: name is required", i)
		}
		city.Name = name

		if _, dup := seenCities[name]; dup {
			return fmt.Errorf("city %q is declared twice", name)
		}
		seenCities[name] = struct{}{}

		if geo.Profile(name) == nil && len(city.Boroughs) == 0 {
			return fmt.Errorf("city %q has no built-in geography; declare boroughs explicitly", name)
		}

		for j := range city.Feeds {
			feed := &city.Feeds[j]
			if _, dup := seenFeeds[feed.ID]; dup {
				return fmt.Errorf("feed %q is declared twice", feed.ID)
			}
			seenFeeds[feed.ID] = struct{}{}

			if feed.Kind == "stream" && feed.URL == "" {
				return fmt.Errorf("stream feed %q requires a url", feed.ID)
			}
			if feed.Kind == "poll" && !c.Poller.Enabled {
				return fmt.Errorf("feed %q is kind poll but the poller is disabled", feed.ID)
			}
		}
	}
	return nil
}

// validatePoller checks the call-log API credentials when polling is on.
func (c *Config) validatePoller() error {
	if !c.Poller.Enabled {
		return nil
	}
	if c.Poller.BaseURL == "" {
		return fmt.Errorf("poller.base_url is required when the poller is enabled")
	}
	if c.Poller.TokenSecret == "" {
		return fmt.Errorf("poller.token_secret is required when the poller is enabled")
	}
	if c.Poller.Username == "" || c.Poller.Password == "" {
		return fmt.Errorf("poller.username and poller.password are required when the poller is enabled")
	}
	return nil
}

// validateNATS checks broker settings when the bridge is on.
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("nats.url is required when nats is enabled without an embedded server")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required for the embedded server")
	}
	return nil
}
