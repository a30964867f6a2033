package models

import (
	"strings"
	"time"
)

type Organization struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// OrganizationType is the service-type code embedded in an organization name.
type OrganizationType string

const (
	OrganizationTypeVPO OrganizationType = "ВПО"
	OrganizationTypeDPO OrganizationType = "ДПО"
	OrganizationTypeKS  OrganizationType = "КС"
	OrganizationTypeKDC OrganizationType = "КДЦ"
)

var organizationTypeAliases = map[string]OrganizationType{
	"vpo": OrganizationTypeVPO,
	"dpo": OrganizationTypeDPO,
	"ks":  OrganizationTypeKS,
	"kdc": OrganizationTypeKDC,
	"впо": OrganizationTypeVPO,
	"дпо": OrganizationTypeDPO,
	"кс":  OrganizationTypeKS,
	"кдц": OrganizationTypeKDC,
}

// ParseOrganizationType accepts either the Latin alias or the Cyrillic code.
func ParseOrganizationType(value string) (OrganizationType, bool) {
	t, ok := organizationTypeAliases[strings.ToLower(strings.TrimSpace(value))]
	return t, ok
}

// HasType reports whether the organization name carries the given type code.
func (o Organization) HasType(t OrganizationType) bool {
	return strings.Contains(o.Name, string(t))
}
