package consul

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// NewClient builds a consul client from the standard CONSUL_* environment
// variables (CONSUL_HTTP_ADDR in particular).
func NewClient() (*consulapi.Client, error) {
	client, err := consulapi.NewClient(consulapi.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return client, nil
}

// RegisterService registers this instance with consul so other services can
// discover it. Health is checked over the /ping endpoint.
func RegisterService(client *consulapi.Client, serviceName, serviceID, address string, port int) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: address,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/ping", address, port),
			Interval:                       "15s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("registering service %s: %w", serviceName, err)
	}
	return nil
}

// DeregisterService removes the instance from consul during shutdown.
func DeregisterService(client *consulapi.Client, serviceID string) error {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("deregistering service %s: %w", serviceID, err)
	}
	return nil
}
