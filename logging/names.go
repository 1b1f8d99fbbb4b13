package logging

const (
	NameAPI                 = "API"
	NameBeaconClient        = "BeaconClient"
	NameCombiner            = "Combiner"
	NameConsensus           = "Consensus"
	NameDutyOrchestrator    = "DutyOrchestrator"
	NameDutyScheduler       = "DutyScheduler"
	NameNode                = "Node"
	NameP2PNetwork          = "P2PNetwork"
	NameSigner              = "Signer"
	NameSlashingProtection  = "SlashingProtection"
	NameBadgerDBLog         = "BadgerDBLog"
	NamePebbleDBLog         = "PebbleDBLog"
	NameCreateThreshold     = "CreateThreshold"
	NameExportSlashingDB    = "ExportSlashingDB"
	NameImportSlashingDB    = "ImportSlashingDB"
	NameInspectSlashingDB   = "InspectSlashingDB"
	NameInMemoryTransport   = "InMemoryTransport"
	NamePubsubTopicListener = "PubsubTopicListener"
)
