package billing

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/emtchat/emtkit/pkg/entitlement"
)

// PriceKey identifies one purchasable price: a paid tier at a billing
// interval. Free is never purchasable and is rejected at catalog build time.
type PriceKey struct {
	Tier     entitlement.Tier
	Interval entitlement.BillingInterval
}

// Catalog maps tiers and intervals to provider price IDs and back. It is
// immutable after construction; build a new one to change prices.
type Catalog struct {
	prices map[PriceKey]string
	tiers  map[string]PriceKey
}

// NewCatalog builds a catalog from a price map. Every entry must reference a
// paid tier, a known interval, and a non-empty price ID; duplicate price IDs
// are rejected because webhook correlation relies on the reverse lookup.
func NewCatalog(prices map[PriceKey]string) (*Catalog, error) {
	if len(prices) == 0 {
		return nil, errors.Join(ErrInvalidConfig, errors.New("catalog has no prices"))
	}

	c := &Catalog{
		prices: make(map[PriceKey]string, len(prices)),
		tiers:  make(map[string]PriceKey, len(prices)),
	}
	for key, priceID := range prices {
		if key.Tier == entitlement.TierFree {
			return nil, errors.Join(ErrInvalidConfig, errors.New("free tier cannot carry a price"))
		}
		if key.Interval != entitlement.IntervalMonthly && key.Interval != entitlement.IntervalYearly {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown interval %q", key.Interval))
		}
		if priceID == "" {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("empty price ID for %s/%s", key.Tier, key.Interval))
		}
		if _, dup := c.tiers[priceID]; dup {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("price ID %s mapped twice", priceID))
		}
		c.prices[key] = priceID
		c.tiers[priceID] = key
	}
	return c, nil
}

// PriceID returns the provider price ID for a tier and interval.
func (c *Catalog) PriceID(tier entitlement.Tier, interval entitlement.BillingInterval) (string, error) {
	priceID, ok := c.prices[PriceKey{Tier: tier, Interval: interval}]
	if !ok {
		return "", errors.Join(ErrNoPriceForTier, fmt.Errorf("tier %s interval %s", tier, interval))
	}
	return priceID, nil
}

// KeyForPrice resolves a provider price ID back to its tier and interval.
// Used when normalizing webhook events into subscription records.
func (c *Catalog) KeyForPrice(priceID string) (PriceKey, error) {
	key, ok := c.tiers[priceID]
	if !ok {
		return PriceKey{}, errors.Join(ErrUnknownPrice, fmt.Errorf("price ID %s", priceID))
	}
	return key, nil
}

// catalogFile is the YAML shape: tier name to interval to price ID.
//
//	starter:
//	  monthly: price_123
//	  yearly: price_456
type catalogFile map[string]map[string]string

// LoadCatalog reads a YAML price catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("decode catalog: %w", err))
	}

	prices := make(map[PriceKey]string)
	for tierName, intervals := range file {
		tier, ok := entitlement.TierFromString(tierName)
		if !ok {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown tier %q", tierName))
		}
		for intervalName, priceID := range intervals {
			prices[PriceKey{
				Tier:     tier,
				Interval: entitlement.BillingInterval(intervalName),
			}] = priceID
		}
	}
	return NewCatalog(prices)
}

// LoadCatalogFile reads a YAML price catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("open catalog: %w", err))
	}
	defer f.Close()
	return LoadCatalog(f)
}
