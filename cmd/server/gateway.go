package main

import (
	"log"
	"net/http"

	"checkout/cmd/server/config"
	"checkout/internal/balance"
	"checkout/internal/observability"
)

// buildGateway assembles the resilient balance gateway. Every retry and
// breaker transition is logged and counted.
func buildGateway(cfg config.BalanceConfig, reliability balance.ReliabilityConfig, metrics *observability.Metrics, logf func(format string, args ...any)) *balance.Gateway {
	if logf == nil {
		logf = log.Printf
	}
	client := balance.NewClient(cfg.BaseURL, &http.Client{})
	gwCfg := reliability.GatewayConfig(cfg.AttemptTimeout, gatewayObserver(metrics, logf), metrics.AddRateLimitWait)
	return balance.NewGateway(client, gwCfg)
}

func gatewayObserver(metrics *observability.Metrics, logf func(format string, args ...any)) balance.Observer {
	return func(ev balance.Event) {
		switch ev.Kind {
		case balance.EventRetry:
			logf("balance %s: retry %d in %v: %v", ev.Operation, ev.Attempt, ev.Delay, ev.Err)
			metrics.AddGatewayEvent(ev.Operation, string(ev.Kind))
		default:
			logf("balance %s breaker: %s: %v", ev.Family, ev.Kind, ev.Err)
			metrics.AddGatewayEvent(string(ev.Family), string(ev.Kind))
		}
	}
}
