package comm

import "github.com/bacstack/bacnet/pkg/pdu"

// ApplicationServiceElement exposes Request/Confirmation, the ASE half of
// the dual ASE/SAP binding used for in-stack services (§4.1).
type ApplicationServiceElement interface {
	Request(p *pdu.PDU) error
	Confirmation(p *pdu.PDU) error
}

// ServiceAccessPoint exposes SapIndication/SapConfirmation, the SAP half.
type ServiceAccessPoint interface {
	SapIndication(p *pdu.PDU) error
	SapConfirmation(p *pdu.PDU) error
}

// ASEPort is embedded by an ASE. It provides Request (delivering to the
// bound SAP's SapIndication) and BindSAP; the embedding type supplies
// Confirmation itself.
type ASEPort struct {
	sap ServiceAccessPoint
}

func (a *ASEPort) BindSAP(s ServiceAccessPoint) error {
	if a.sap != nil {
		return configErr("ASE already bound to a SAP")
	}
	a.sap = s
	return nil
}

func (a *ASEPort) Request(p *pdu.PDU) error {
	if a.sap == nil {
		return configErr("request on unbound ASE")
	}
	return a.sap.SapIndication(p)
}

// SAPPort is embedded by a SAP. It provides SapConfirmation (delivering
// to the bound ASE's Confirmation) and BindASE; the embedding type
// supplies SapIndication itself.
type SAPPort struct {
	ase ApplicationServiceElement
}

func (s *SAPPort) BindASE(a ApplicationServiceElement) error {
	if s.ase != nil {
		return configErr("SAP already bound to an ASE")
	}
	s.ase = a
	return nil
}

func (s *SAPPort) SapConfirmation(p *pdu.PDU) error {
	if s.ase == nil {
		return configErr("confirmation on unbound SAP")
	}
	return s.ase.Confirmation(p)
}

// BindASESAP binds exactly one ASE to exactly one SAP.
func BindASESAP(ase interface {
	ApplicationServiceElement
	BindSAP(ServiceAccessPoint) error
}, sap interface {
	ServiceAccessPoint
	BindASE(ApplicationServiceElement) error
}) error {
	if err := ase.BindSAP(sap); err != nil {
		return err
	}
	return sap.BindASE(ase)
}
